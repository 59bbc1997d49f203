package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/partnerled/gdapctl/internal/store"
	"github.com/rs/zerolog/log"
)

// GenerateCmd is the one-flow generation: it walks the customer catalog
// and emits matched relationship and assignment staging files in a
// single pass, ready for review and the create commands.
type GenerateCmd struct {
	Group string   `help:"Security group identifier bound to every generated assignment." required:""`
	Roles []string `help:"Role identifiers granted by both the relationships and the assignments." required:""`
	Force bool     `help:"Overwrite existing staging files." default:"false"`
}

func (c *GenerateCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	customers, err := rt.client.ListCustomers(ctx)
	if err != nil {
		return err
	}

	relationships, assignments, err := gdap.GenerateStagingPair(customers, c.Group, c.Roles)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(rt.cfg.InputDir, 0700); err != nil {
		return fmt.Errorf("failed to create input directory: %w", err)
	}

	ext := store.Format(rt.cfg.Format).Ext()
	relPath := filepath.Join(rt.cfg.InputDir, "relationships"+ext)
	assignPath := filepath.Join(rt.cfg.InputDir, "assignments"+ext)

	if err := c.writeStaging(rt, relPath, relationships); err != nil {
		return err
	}
	if err := c.writeStaging(rt, assignPath, assignments); err != nil {
		return err
	}

	log.Info().
		Int("customers", len(customers)).
		Str("relationships", relPath).
		Str("assignments", assignPath).
		Msg("generated staging pair")

	fmt.Printf("Generated %d relationship and %d assignment records.\n", len(relationships), len(assignments))
	fmt.Println("Review the staging files, then run:")
	fmt.Println("  gdapctl relationship create --input " + relPath)
	fmt.Println("  gdapctl assignment create --input " + assignPath)

	return nil
}

// writeStaging replaces the staging file with a fresh snapshot. Existing
// files are only overwritten with --force so a half-reviewed batch is
// never lost by accident.
func (c *GenerateCmd) writeStaging(rt *runtime, path string, items []gdap.WorkItem) error {
	if _, err := os.Stat(path); err == nil {
		if !c.Force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
	}

	return rt.records.Append(path, items)
}
