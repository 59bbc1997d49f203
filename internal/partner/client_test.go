package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/partnerled/gdapctl/internal/auth"
	"github.com/partnerled/gdapctl/internal/config"
	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/stretchr/testify/require"
)

type staticAuth struct{}

func (staticAuth) EnsureReady(context.Context) bool { return true }
func (staticAuth) GetCredential(context.Context) (auth.Credential, error) {
	return auth.Credential{Token: "test-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (staticAuth) Invalidate() {}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.PartnerConfig{BaseURL: srv.URL}, 5*time.Second, staticAuth{})
	return client, srv
}

func TestCreateRelationship(t *testing.T) {
	var gotAuth, gotRequestID string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tenantRelationships/delegatedAdminRelationships", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("Client-Request-Id")

		var body relationshipResource
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "tenant-1", body.Customer.TenantID)
		require.Len(t, body.AccessDetails.UnifiedRoles, 2)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(relationshipResource{ID: "rel-1", Status: RemotePending})
	}))

	id, err := client.CreateRelationship(context.Background(), "tenant-1", "contoso", []string{"role-a", "role-b"})
	require.NoError(t, err)
	require.Equal(t, "rel-1", id)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestCreateRelationshipMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(relationshipResource{})
	}))

	_, err := client.CreateRelationship(context.Background(), "tenant-1", "contoso", []string{"role-a"})
	require.Error(t, err)
}

func TestGetRelationship(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tenantRelationships/delegatedAdminRelationships/rel-1", r.URL.Path)
		json.NewEncoder(w).Encode(relationshipResource{
			ID:            "rel-1",
			Status:        RemoteActive,
			AccessDetails: accessDetails{UnifiedRoles: []roleRef{{RoleDefinitionID: "role-a"}}},
		})
	}))

	state, err := client.GetRelationship(context.Background(), "rel-1")
	require.NoError(t, err)
	require.Equal(t, RemoteActive, state.Status)
	require.Equal(t, []string{"role-a"}, state.RoleSet)
}

func TestTerminateRelationship(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tenantRelationships/delegatedAdminRelationships/rel-1/requests", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "terminate", body["action"])

		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.TerminateRelationship(context.Background(), "rel-1"))
}

func TestAssignmentLifecycleCalls(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			require.Equal(t, "/tenantRelationships/delegatedAdminCustomers/tenant-1/accessAssignments", r.URL.Path)
			json.NewEncoder(w).Encode(assignmentResource{ID: "assign-1", Status: RemotePending})
		case r.Method == http.MethodPatch:
			require.Equal(t, "/tenantRelationships/accessAssignments/assign-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			require.Equal(t, "/tenantRelationships/accessAssignments/assign-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			json.NewEncoder(w).Encode(assignmentResource{ID: "assign-1", Status: RemoteActive})
		}
	}))

	ctx := context.Background()

	id, err := client.CreateAssignment(ctx, "group-1", "tenant-1", []string{"role-a"})
	require.NoError(t, err)
	require.Equal(t, "assign-1", id)

	state, err := client.GetAssignment(ctx, "assign-1")
	require.NoError(t, err)
	require.Equal(t, RemoteActive, state.Status)

	require.NoError(t, client.UpdateAssignment(ctx, "assign-1", []string{"role-b"}))
	require.NoError(t, client.DeleteAssignment(ctx, "assign-1"))
}

func TestErrorMapping(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tenantRelationships/delegatedAdminRelationships/throttled":
			w.Header().Set("Retry-After", "12")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "activityLimitReached", "message": "slow down"},
			})
		case "/tenantRelationships/delegatedAdminRelationships/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "invalidRequest", "message": "bad role set"},
			})
		}
	}))

	ctx := context.Background()

	_, err := client.GetRelationship(ctx, "throttled")
	require.Equal(t, ClassTransient, Classify(err))
	require.Equal(t, 12*time.Second, RetryAfter(err))

	_, err = client.GetRelationship(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, ClassPermanent, Classify(err))

	_, err = client.GetRelationship(ctx, "invalid")
	require.Equal(t, ClassPermanent, Classify(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "invalidRequest", apiErr.Code)
}

func TestListCustomers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/delegatedAdminCustomers", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]string{
				{"tenantId": "tenant-1", "displayName": "Contoso", "defaultDomainName": "contoso.onmicrosoft.com"},
				{"tenantId": "tenant-2", "displayName": "Fabrikam", "defaultDomainName": "fabrikam.onmicrosoft.com"},
			},
		})
	}))

	customers, err := client.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	require.Equal(t, gdap.Customer{
		TenantID: "tenant-1",
		Name:     "Contoso",
		Domain:   "contoso.onmicrosoft.com",
	}, customers[0])
}

func TestListRelationshipsAsWorkItems(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listEnvelope[relationshipResource]{Value: []relationshipResource{
			{
				ID:            "rel-1",
				DisplayName:   "contoso-gdap",
				Status:        RemoteActive,
				Customer:      &customerRef{TenantID: "tenant-1"},
				AccessDetails: accessDetails{UnifiedRoles: []roleRef{{RoleDefinitionID: "role-a"}}},
			},
		}})
	}))

	items, err := client.ListRelationships(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "rel-1", items[0].ID)
	require.Equal(t, gdap.KindRelationship, items[0].Kind)
	require.Equal(t, "tenant-1", items[0].CustomerKey)
	require.Equal(t, gdap.StatusActive, items[0].Status)
}

func TestCatalogCallsAreCached(t *testing.T) {
	var calls atomic.Int64

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]string{}})
	}))

	ctx := context.Background()
	_, err := client.ListDirectoryRoles(ctx)
	require.NoError(t, err)
	_, err = client.ListDirectoryRoles(ctx)
	require.NoError(t, err)

	require.Equal(t, int64(1), calls.Load())
}

func TestMapRemoteStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   gdap.Status
		ok     bool
	}{
		{RemotePending, gdap.StatusSubmitted, true},
		{RemoteApprovalPending, gdap.StatusSubmitted, true},
		{RemoteActive, gdap.StatusActive, true},
		{RemoteTerminating, gdap.StatusTerminating, true},
		{RemoteTerminated, gdap.StatusTerminated, true},
		{"somethingNew", "", false},
	}

	for _, tt := range tests {
		got, ok := MapRemoteStatus(tt.remote)
		require.Equal(t, tt.ok, ok, tt.remote)
		require.Equal(t, tt.want, got, tt.remote)
	}
}
