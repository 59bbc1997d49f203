package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/partnerled/gdapctl/internal/auth"
	"github.com/partnerled/gdapctl/internal/config"
	"github.com/partnerled/gdapctl/internal/gdap"
)

// Client implements RelationshipAPI, AssignmentAPI and Catalog against
// the partner administration REST API. Mutations go through a plain
// HTTP client; read-only catalog calls use a caching transport so
// repeated exports do not hammer the API.
type Client struct {
	baseURL string
	timeout time.Duration
	auth    auth.Authenticator
	http    *http.Client
	cached  *http.Client
}

var _ Catalog = (*Client)(nil)

// Relationships returns the RelationshipAPI view of the client.
func (c *Client) Relationships() RelationshipAPI { return relationshipAPI{c} }

// Assignments returns the AssignmentAPI view of the client.
func (c *Client) Assignments() AssignmentAPI { return assignmentAPI{c} }

type relationshipAPI struct{ c *Client }

func (r relationshipAPI) Create(ctx context.Context, customerKey, displayName string, roleSet []string) (string, error) {
	return r.c.CreateRelationship(ctx, customerKey, displayName, roleSet)
}

func (r relationshipAPI) Get(ctx context.Context, id string) (*RelationshipState, error) {
	return r.c.GetRelationship(ctx, id)
}

func (r relationshipAPI) Terminate(ctx context.Context, id string) error {
	return r.c.TerminateRelationship(ctx, id)
}

type assignmentAPI struct{ c *Client }

func (a assignmentAPI) Create(ctx context.Context, groupKey, customerKey string, roleSet []string) (string, error) {
	return a.c.CreateAssignment(ctx, groupKey, customerKey, roleSet)
}

func (a assignmentAPI) Get(ctx context.Context, id string) (*AssignmentState, error) {
	return a.c.GetAssignment(ctx, id)
}

func (a assignmentAPI) Update(ctx context.Context, id string, roleSet []string) error {
	return a.c.UpdateAssignment(ctx, id, roleSet)
}

func (a assignmentAPI) Delete(ctx context.Context, id string) error {
	return a.c.DeleteAssignment(ctx, id)
}

// NewClient builds a partner API client.
func NewClient(cfg config.PartnerConfig, timeout time.Duration, authenticator auth.Authenticator) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		auth:    authenticator,
		http:    &http.Client{},
		cached:  NewCachingHTTPClient(cfg.CacheDir),
	}
}

// Wire shapes for the partner API. Only the fields the engine consumes
// are modelled; everything else passes through untouched.

type roleRef struct {
	RoleDefinitionID string `json:"roleDefinitionId"`
}

type accessDetails struct {
	UnifiedRoles []roleRef `json:"unifiedRoles"`
}

type relationshipResource struct {
	ID            string        `json:"id"`
	DisplayName   string        `json:"displayName,omitempty"`
	Status        string        `json:"status,omitempty"`
	Customer      *customerRef  `json:"customer,omitempty"`
	AccessDetails accessDetails `json:"accessDetails"`
	CreatedAt     time.Time     `json:"createdDateTime,omitempty"`
}

type customerRef struct {
	TenantID    string `json:"tenantId"`
	DisplayName string `json:"displayName,omitempty"`
}

type accessContainer struct {
	ID   string `json:"accessContainerId"`
	Type string `json:"accessContainerType"`
}

type assignmentResource struct {
	ID              string          `json:"id"`
	Status          string          `json:"status,omitempty"`
	AccessContainer accessContainer `json:"accessContainer"`
	AccessDetails   accessDetails   `json:"accessDetails"`
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

func toRoleRefs(roleSet []string) []roleRef {
	refs := make([]roleRef, 0, len(roleSet))
	for _, r := range roleSet {
		refs = append(refs, roleRef{RoleDefinitionID: r})
	}
	return refs
}

func fromRoleRefs(refs []roleRef) []string {
	roles := make([]string, 0, len(refs))
	for _, r := range refs {
		roles = append(roles, r.RoleDefinitionID)
	}
	return roles
}

// CreateRelationship submits a new delegated admin relationship and
// returns its remote identifier.
func (c *Client) CreateRelationship(ctx context.Context, customerKey, displayName string, roleSet []string) (string, error) {
	body := relationshipResource{
		DisplayName:   displayName,
		Customer:      &customerRef{TenantID: customerKey},
		AccessDetails: accessDetails{UnifiedRoles: toRoleRefs(roleSet)},
	}

	var created relationshipResource
	err := c.do(ctx, c.http, http.MethodPost, "/tenantRelationships/delegatedAdminRelationships", body, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: "create response missing relationship id"}
	}

	return created.ID, nil
}

// GetRelationship fetches the remote state of a relationship.
func (c *Client) GetRelationship(ctx context.Context, id string) (*RelationshipState, error) {
	var res relationshipResource
	err := c.do(ctx, c.http, http.MethodGet, "/tenantRelationships/delegatedAdminRelationships/"+id, nil, &res)
	if err != nil {
		return nil, err
	}

	return &RelationshipState{
		Status:  res.Status,
		RoleSet: fromRoleRefs(res.AccessDetails.UnifiedRoles),
	}, nil
}

// TerminateRelationship requests termination of an active relationship.
func (c *Client) TerminateRelationship(ctx context.Context, id string) error {
	body := map[string]string{"action": "terminate"}
	path := "/tenantRelationships/delegatedAdminRelationships/" + id + "/requests"
	return c.do(ctx, c.http, http.MethodPost, path, body, nil)
}

// CreateAssignment submits a new security group to role assignment.
func (c *Client) CreateAssignment(ctx context.Context, groupKey, customerKey string, roleSet []string) (string, error) {
	body := assignmentResource{
		AccessContainer: accessContainer{ID: groupKey, Type: "securityGroup"},
		AccessDetails:   accessDetails{UnifiedRoles: toRoleRefs(roleSet)},
	}

	var created assignmentResource
	path := "/tenantRelationships/delegatedAdminCustomers/" + customerKey + "/accessAssignments"
	err := c.do(ctx, c.http, http.MethodPost, path, body, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: "create response missing assignment id"}
	}

	return created.ID, nil
}

// GetAssignment fetches the remote state of an assignment.
func (c *Client) GetAssignment(ctx context.Context, id string) (*AssignmentState, error) {
	var res assignmentResource
	err := c.do(ctx, c.http, http.MethodGet, "/tenantRelationships/accessAssignments/"+id, nil, &res)
	if err != nil {
		return nil, err
	}

	return &AssignmentState{Status: res.Status}, nil
}

// UpdateAssignment replaces the role set of an existing assignment.
func (c *Client) UpdateAssignment(ctx context.Context, id string, roleSet []string) error {
	body := map[string]accessDetails{
		"accessDetails": {UnifiedRoles: toRoleRefs(roleSet)},
	}
	return c.do(ctx, c.http, http.MethodPatch, "/tenantRelationships/accessAssignments/"+id, body, nil)
}

// DeleteAssignment removes an assignment.
func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	return c.do(ctx, c.http, http.MethodDelete, "/tenantRelationships/accessAssignments/"+id, nil, nil)
}

// ListCustomers returns the eligible customer catalog.
func (c *Client) ListCustomers(ctx context.Context) ([]gdap.Customer, error) {
	var env listEnvelope[struct {
		TenantID      string `json:"tenantId"`
		DisplayName   string `json:"displayName"`
		DefaultDomain string `json:"defaultDomainName"`
	}]
	if err := c.do(ctx, c.cached, http.MethodGet, "/delegatedAdminCustomers", nil, &env); err != nil {
		return nil, err
	}

	customers := make([]gdap.Customer, 0, len(env.Value))
	for _, v := range env.Value {
		customers = append(customers, gdap.Customer{
			TenantID: v.TenantID,
			Name:     v.DisplayName,
			Domain:   v.DefaultDomain,
		})
	}

	return customers, nil
}

// ListDirectoryRoles returns the delegable directory role catalog.
func (c *Client) ListDirectoryRoles(ctx context.Context) ([]gdap.DirectoryRole, error) {
	var env listEnvelope[struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	}]
	if err := c.do(ctx, c.cached, http.MethodGet, "/directoryRoles", nil, &env); err != nil {
		return nil, err
	}

	roles := make([]gdap.DirectoryRole, 0, len(env.Value))
	for _, v := range env.Value {
		roles = append(roles, gdap.DirectoryRole{ID: v.ID, Name: v.DisplayName})
	}

	return roles, nil
}

// ListSecurityGroups returns the partner tenant's security groups.
func (c *Client) ListSecurityGroups(ctx context.Context) ([]gdap.SecurityGroup, error) {
	var env listEnvelope[struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	}]
	if err := c.do(ctx, c.cached, http.MethodGet, "/groups", nil, &env); err != nil {
		return nil, err
	}

	groups := make([]gdap.SecurityGroup, 0, len(env.Value))
	for _, v := range env.Value {
		groups = append(groups, gdap.SecurityGroup{ID: v.ID, Name: v.DisplayName})
	}

	return groups, nil
}

// ListRelationships returns existing relationships as work items so the
// export file can be restaged as refresh or terminate input.
func (c *Client) ListRelationships(ctx context.Context) ([]gdap.WorkItem, error) {
	var env listEnvelope[relationshipResource]
	if err := c.do(ctx, c.cached, http.MethodGet, "/tenantRelationships/delegatedAdminRelationships", nil, &env); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]gdap.WorkItem, 0, len(env.Value))
	for _, v := range env.Value {
		status, ok := MapRemoteStatus(v.Status)
		if !ok {
			status = gdap.StatusSubmitted
		}

		item := gdap.WorkItem{
			ID:          v.ID,
			Kind:        gdap.KindRelationship,
			DisplayName: v.DisplayName,
			RoleSet:     fromRoleRefs(v.AccessDetails.UnifiedRoles),
			Status:      status,
			RequestedAt: v.CreatedAt,
			UpdatedAt:   now,
		}
		if v.Customer != nil {
			item.CustomerKey = v.Customer.TenantID
		}
		items = append(items, item)
	}

	return items, nil
}

// MapRemoteStatus translates the remote status vocabulary to the local
// lifecycle state. The second return is false for unknown statuses, in
// which case callers keep the local state and log.
func MapRemoteStatus(remote string) (gdap.Status, bool) {
	switch remote {
	case RemotePending, RemoteApprovalPending:
		return gdap.StatusSubmitted, true
	case RemoteActive:
		return gdap.StatusActive, true
	case RemoteTerminating:
		return gdap.StatusTerminating, true
	case RemoteTerminated:
		return gdap.StatusTerminated, true
	default:
		return "", false
	}
}

// apiErrorBody is the error envelope the partner API returns.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one remote call with a per-call timeout, lazy credential
// acquisition and error mapping.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	cred, err := c.auth.GetCredential(ctx)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) mapError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope apiErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}

	return apiErr
}
