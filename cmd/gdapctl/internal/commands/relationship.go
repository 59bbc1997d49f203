package commands

import (
	"context"

	"github.com/partnerled/gdapctl/internal/engine"
)

// RelationshipCmd groups the bulk relationship lifecycle operations.
type RelationshipCmd struct {
	Create    RelationshipCreateCmd    `cmd:"" help:"Create relationships from a batch file"`
	Refresh   RelationshipRefreshCmd   `cmd:"" help:"Refresh relationship statuses from the partner API"`
	Terminate RelationshipTerminateCmd `cmd:"" help:"Request termination of relationships"`
}

type RelationshipCreateCmd struct {
	batchFlags
}

func (c *RelationshipCreateCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpCreateRelationship)
}

type RelationshipRefreshCmd struct {
	batchFlags
}

func (c *RelationshipRefreshCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpRefreshRelationship)
}

type RelationshipTerminateCmd struct {
	batchFlags
}

func (c *RelationshipTerminateCmd) Run(ctx context.Context, globals *Globals) error {
	return runBatch(ctx, globals, c.batchFlags, engine.OpTerminateRelationship)
}
