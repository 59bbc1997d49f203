package gdap

import (
	"errors"
	"time"
)

// GenerateStagingPair builds matched relationship and assignment staging
// items for a set of customers in one pass: one pending relationship per
// customer, plus one pending assignment binding the given security group
// to the same role set on that customer. The two slices share index
// order so operators can review them side by side before running create.
func GenerateStagingPair(customers []Customer, groupKey string, roleSet []string) ([]WorkItem, []WorkItem, error) {
	if groupKey == "" {
		return nil, nil, errors.New("groupKey is required")
	}
	if len(roleSet) == 0 {
		return nil, nil, errors.New("roleSet must not be empty")
	}

	now := time.Now().UTC()
	relationships := make([]WorkItem, 0, len(customers))
	assignments := make([]WorkItem, 0, len(customers))

	for _, c := range customers {
		displayName := c.Name
		if displayName == "" {
			displayName = "gdap-" + c.TenantID
		}

		relationships = append(relationships, WorkItem{
			Kind:        KindRelationship,
			CustomerKey: c.TenantID,
			DisplayName: displayName,
			RoleSet:     append([]string(nil), roleSet...),
			Status:      StatusPending,
			RequestedAt: now,
		})

		assignments = append(assignments, WorkItem{
			Kind:        KindAssignment,
			CustomerKey: c.TenantID,
			GroupKey:    groupKey,
			RoleSet:     append([]string(nil), roleSet...),
			Status:      StatusPending,
			RequestedAt: now,
		})
	}

	return relationships, assignments, nil
}
