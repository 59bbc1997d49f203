package commands

import (
	"context"

	"github.com/partnerled/gdapctl/internal/engine"
)

// AssignmentCmd groups the bulk access assignment lifecycle operations.
type AssignmentCmd struct {
	Create  AssignmentCreateCmd  `cmd:"" help:"Create access assignments from a batch file"`
	Refresh AssignmentRefreshCmd `cmd:"" help:"Refresh assignment statuses from the partner API"`
	Update  AssignmentUpdateCmd  `cmd:"" help:"Replace the role sets of existing assignments"`
	Delete  AssignmentDeleteCmd  `cmd:"" help:"Delete access assignments"`
}

type AssignmentCreateCmd struct {
	batchFlags
}

func (c *AssignmentCreateCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpCreateAssignment)
}

type AssignmentRefreshCmd struct {
	batchFlags
}

func (c *AssignmentRefreshCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpRefreshAssignment)
}

type AssignmentUpdateCmd struct {
	batchFlags
}

func (c *AssignmentUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpUpdateAssignment)
}

type AssignmentDeleteCmd struct {
	batchFlags
}

func (c *AssignmentDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpDeleteAssignment)
}
