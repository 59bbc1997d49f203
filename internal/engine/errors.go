package engine

import "errors"

// Sentinel errors fatal to a whole run. Per-item errors never abort the
// batch; they land in the item's result record instead.
var (
	// ErrPrerequisite means the authenticator's readiness check failed.
	// No batch work is attempted.
	ErrPrerequisite = errors.New("prerequisite check failed")

	// ErrOutputStore means results could not be persisted. Losing result
	// records silently is worse than stopping, so this aborts the run.
	ErrOutputStore = errors.New("failed to persist results")
)
