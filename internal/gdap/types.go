package gdap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for work item state transitions
var (
	// ErrAlreadyTerminal is returned when an operation targets an item that
	// has already reached Terminated or Failed. Callers treat it as an
	// idempotent no-op, not a failure.
	ErrAlreadyTerminal = errors.New("work item already in a terminal state")

	// ErrMissingID is returned when an operation requires a remote
	// identifier the item does not have yet.
	ErrMissingID = errors.New("work item has no remote identifier")
)

// Kind distinguishes the two work item shapes.
type Kind string

const (
	// KindRelationship is a delegated admin relationship between the
	// partner tenant and a customer tenant.
	KindRelationship Kind = "relationship"
	// KindAssignment maps a partner security group to roles on a customer
	// tenant, provisioned through an active relationship.
	KindAssignment Kind = "assignment"
)

// Status is the local lifecycle state of a work item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSubmitted   Status = "submitted"
	StatusActive      Status = "active"
	StatusTerminating Status = "terminating"
	StatusTerminated  Status = "terminated"
	StatusFailed      Status = "failed"
)

// rank orders statuses along the happy path. Failed sits outside the
// ordering and is handled explicitly.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSubmitted:
		return 1
	case StatusActive:
		return 2
	case StatusTerminating:
		return 3
	case StatusTerminated:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether s is at or beyond other on the happy path.
func (s Status) AtLeast(other Status) bool {
	return s.rank() >= other.rank() && s.rank() >= 0
}

// Terminal reports whether no further remote operations apply to an item
// in this state.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusFailed
}

// WorkItem is one unit of bulk work: a single relationship or a single
// access assignment driven through its lifecycle.
type WorkItem struct {
	ID          string    `json:"id,omitempty"`
	Kind        Kind      `json:"kind"`
	CustomerKey string    `json:"customerKey"`
	DisplayName string    `json:"displayName,omitempty"`
	GroupKey    string    `json:"groupKey,omitempty"`
	RoleSet     []string  `json:"roleSet"`
	Status      Status    `json:"status"`
	LastError   string    `json:"lastError,omitempty"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requestedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	RunID       string    `json:"runId,omitempty"`
}

// Validate checks structural invariants on a staged item. It does not
// touch the network.
func (w *WorkItem) Validate() error {
	switch w.Kind {
	case KindRelationship, KindAssignment:
	default:
		return fmt.Errorf("unknown kind %q", w.Kind)
	}

	if w.CustomerKey == "" {
		return errors.New("customerKey is required")
	}

	if w.Kind == KindAssignment && w.GroupKey == "" {
		return errors.New("groupKey is required for assignment items")
	}

	if len(w.RoleSet) == 0 {
		return errors.New("roleSet must not be empty")
	}

	for _, role := range w.RoleSet {
		if role == "" {
			return errors.New("roleSet entries must not be empty")
		}
		// ';' is the roleSet separator in the delimited-text format and
		// would not round-trip. Role identifiers are GUIDs in practice.
		if strings.Contains(role, ";") {
			return fmt.Errorf("role identifier %q must not contain ';'", role)
		}
	}

	// ID is non-empty exactly when the item has been submitted.
	if (w.ID != "") != w.Status.AtLeast(StatusSubmitted) && w.Status != StatusFailed {
		return fmt.Errorf("id %q inconsistent with status %q", w.ID, w.Status)
	}

	return nil
}

// Terminal reports whether the item has reached Terminated or Failed.
func (w *WorkItem) Terminal() bool {
	return w.Status.Terminal()
}

// MarkSubmitted records a successful remote create. The remote identifier
// must be non-empty.
func (w *WorkItem) MarkSubmitted(id string) error {
	if w.Terminal() {
		return ErrAlreadyTerminal
	}
	if id == "" {
		return errors.New("remote create returned an empty identifier")
	}

	w.ID = id
	w.Status = StatusSubmitted
	w.LastError = ""
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkStatus applies a refresh result. Moving a terminal item is rejected.
func (w *WorkItem) MarkStatus(s Status) error {
	if w.Terminal() {
		return ErrAlreadyTerminal
	}

	w.Status = s
	w.LastError = ""
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records an unrecoverable error. Failed is terminal.
func (w *WorkItem) MarkFailed(reason string) {
	w.Status = StatusFailed
	w.LastError = reason
	w.UpdatedAt = time.Now().UTC()
}

// RecordAttempt bumps the attempt counter and stores the most recent
// error without changing the lifecycle state.
func (w *WorkItem) RecordAttempt(err error) {
	w.Attempt++
	if err != nil {
		w.LastError = err.Error()
	}
	w.UpdatedAt = time.Now().UTC()
}

// Batch is one file-load's worth of work items, processed as a single
// run. Items keep file order; the engine never reorders them.
type Batch struct {
	RunID       string
	Fingerprint string
	Items       []WorkItem
}

// NewBatch stamps the items with a fresh run ID.
func NewBatch(items []WorkItem, fingerprint string) Batch {
	runID := uuid.Must(uuid.NewV7()).String()
	for i := range items {
		items[i].RunID = runID
	}

	return Batch{
		RunID:       runID,
		Fingerprint: fingerprint,
		Items:       items,
	}
}

// Customer is an eligible customer tenant, as exported from the partner
// catalog.
type Customer struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
}

// DirectoryRole is a directory role eligible for delegation.
type DirectoryRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SecurityGroup is a partner tenant security group.
type SecurityGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
