package gdap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test failure")

func validRelationshipItem() WorkItem {
	return WorkItem{
		Kind:        KindRelationship,
		CustomerKey: "tenant-1",
		DisplayName: "contoso",
		RoleSet:     []string{"role-a"},
		Status:      StatusPending,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid pending relationship", func(t *testing.T) {
		item := validRelationshipItem()
		require.NoError(t, item.Validate())
	})

	t.Run("assignment requires group key", func(t *testing.T) {
		item := WorkItem{
			Kind:        KindAssignment,
			CustomerKey: "tenant-1",
			RoleSet:     []string{"role-a"},
			Status:      StatusPending,
		}
		require.Error(t, item.Validate())

		item.GroupKey = "group-1"
		require.NoError(t, item.Validate())
	})

	t.Run("empty role set rejected", func(t *testing.T) {
		item := validRelationshipItem()
		item.RoleSet = nil
		require.Error(t, item.Validate())
	})

	t.Run("separator in role identifier rejected", func(t *testing.T) {
		item := validRelationshipItem()
		item.RoleSet = []string{"role-a;role-b"}
		require.Error(t, item.Validate())

		item.RoleSet = []string{""}
		require.Error(t, item.Validate())
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		item := validRelationshipItem()
		item.Kind = "widget"
		require.Error(t, item.Validate())
	})

	t.Run("submitted item requires id", func(t *testing.T) {
		item := validRelationshipItem()
		item.Status = StatusSubmitted
		require.Error(t, item.Validate())

		item.ID = "rel-1"
		require.NoError(t, item.Validate())
	})

	t.Run("pending item must not carry id", func(t *testing.T) {
		item := validRelationshipItem()
		item.ID = "rel-1"
		require.Error(t, item.Validate())
	})
}

func TestMarkSubmitted(t *testing.T) {
	item := validRelationshipItem()

	require.NoError(t, item.MarkSubmitted("rel-1"))
	require.Equal(t, "rel-1", item.ID)
	require.Equal(t, StatusSubmitted, item.Status)
	require.False(t, item.UpdatedAt.IsZero())

	require.Error(t, item.MarkSubmitted(""))
}

func TestMarkSubmittedTerminal(t *testing.T) {
	item := validRelationshipItem()
	item.Status = StatusTerminated
	item.ID = "rel-1"

	require.ErrorIs(t, item.MarkSubmitted("rel-2"), ErrAlreadyTerminal)
	require.Equal(t, "rel-1", item.ID)
}

func TestMarkStatusTerminal(t *testing.T) {
	item := validRelationshipItem()
	item.ID = "rel-1"
	item.Status = StatusFailed

	require.ErrorIs(t, item.MarkStatus(StatusActive), ErrAlreadyTerminal)
	require.Equal(t, StatusFailed, item.Status)
}

func TestMarkFailedClearsNothing(t *testing.T) {
	item := validRelationshipItem()
	item.MarkFailed("boom")

	require.Equal(t, StatusFailed, item.Status)
	require.Equal(t, "boom", item.LastError)
	require.True(t, item.Terminal())
}

func TestRecordAttempt(t *testing.T) {
	item := validRelationshipItem()

	item.RecordAttempt(nil)
	require.Equal(t, 1, item.Attempt)
	require.Empty(t, item.LastError)

	item.RecordAttempt(errTest)
	require.Equal(t, 2, item.Attempt)
	require.Equal(t, "test failure", item.LastError)
}

func TestStatusOrdering(t *testing.T) {
	require.True(t, StatusActive.AtLeast(StatusSubmitted))
	require.True(t, StatusSubmitted.AtLeast(StatusSubmitted))
	require.False(t, StatusPending.AtLeast(StatusSubmitted))
	require.False(t, StatusFailed.AtLeast(StatusPending))

	require.True(t, StatusTerminated.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.False(t, StatusTerminating.Terminal())
}

func TestNewBatchStampsRunID(t *testing.T) {
	items := []WorkItem{validRelationshipItem(), validRelationshipItem()}

	batch := NewBatch(items, "fp-1")

	require.NotEmpty(t, batch.RunID)
	require.Equal(t, "fp-1", batch.Fingerprint)
	require.Len(t, batch.Items, 2)
	for _, item := range batch.Items {
		require.Equal(t, batch.RunID, item.RunID)
	}

	other := NewBatch([]WorkItem{validRelationshipItem()}, "fp-2")
	require.NotEqual(t, batch.RunID, other.RunID)
}
