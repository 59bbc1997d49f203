package partner

import (
	"context"

	"github.com/partnerled/gdapctl/internal/gdap"
)

// Remote status vocabulary. Unknown values are passed through and leave
// the local state untouched.
const (
	RemotePending         = "pending"
	RemoteApprovalPending = "approvalPending"
	RemoteActive          = "active"
	RemoteTerminating     = "terminating"
	RemoteTerminated      = "terminated"
)

// RelationshipState is the remote view of a delegated admin relationship.
type RelationshipState struct {
	Status  string
	RoleSet []string
}

// AssignmentState is the remote view of an access assignment.
type AssignmentState struct {
	Status string
}

// RelationshipAPI is the consumed contract for delegated admin
// relationships. Relationships are never deleted; termination is a
// terminal transition retained for audit.
type RelationshipAPI interface {
	Create(ctx context.Context, customerKey, displayName string, roleSet []string) (string, error)
	Get(ctx context.Context, id string) (*RelationshipState, error)
	Terminate(ctx context.Context, id string) error
}

// AssignmentAPI is the consumed contract for security group to role
// assignments.
type AssignmentAPI interface {
	Create(ctx context.Context, groupKey, customerKey string, roleSet []string) (string, error)
	Get(ctx context.Context, id string) (*AssignmentState, error)
	Update(ctx context.Context, id string, roleSet []string) error
	Delete(ctx context.Context, id string) error
}

// Catalog is the read-only surface backing the export operations.
type Catalog interface {
	ListCustomers(ctx context.Context) ([]gdap.Customer, error)
	ListDirectoryRoles(ctx context.Context) ([]gdap.DirectoryRole, error)
	ListSecurityGroups(ctx context.Context) ([]gdap.SecurityGroup, error)
	ListRelationships(ctx context.Context) ([]gdap.WorkItem, error)
}
