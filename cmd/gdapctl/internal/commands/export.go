package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/partnerled/gdapctl/internal/store"
	"github.com/rs/zerolog/log"
)

// ExportCmd groups the read-only catalog exports. Export files feed the
// staging step: operators edit them into batch input files.
type ExportCmd struct {
	Customers     ExportCustomersCmd     `cmd:"" help:"Export the eligible customer catalog"`
	Roles         ExportRolesCmd         `cmd:"" help:"Export the delegable directory role catalog"`
	Groups        ExportGroupsCmd        `cmd:"" help:"Export the partner security group catalog"`
	Relationships ExportRelationshipsCmd `cmd:"" help:"Export existing relationships as a batch file"`
}

type exportFlags struct {
	Output string `help:"Output file. Defaults to a file in the output directory." type:"path"`
}

func (f exportFlags) resolve(rt *runtime, name string) (string, error) {
	out := f.Output
	if out == "" {
		out = filepath.Join(rt.cfg.OutputDir, name+store.Format(rt.cfg.Format).Ext())
	}
	if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return out, nil
}

type ExportCustomersCmd struct {
	exportFlags
	Compressed bool `help:"Write a zstd-compressed JSONL stream for very large catalogs."`
}

func (c *ExportCustomersCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	customers, err := rt.client.ListCustomers(ctx)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		name := "customers" + store.Format(rt.cfg.Format).Ext()
		if c.Compressed {
			name = "customers.jsonl.zst"
		}
		out = filepath.Join(rt.cfg.OutputDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := store.WriteCustomers(out, store.Format(rt.cfg.Format), customers, c.Compressed); err != nil {
		return err
	}

	log.Info().Int("count", len(customers)).Str("output", out).Msg("exported customers")
	return nil
}

type ExportRolesCmd struct {
	exportFlags
}

func (c *ExportRolesCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	roles, err := rt.client.ListDirectoryRoles(ctx)
	if err != nil {
		return err
	}

	out, err := c.resolve(rt, "roles")
	if err != nil {
		return err
	}

	if err := store.WriteRoles(out, store.Format(rt.cfg.Format), roles); err != nil {
		return err
	}

	log.Info().Int("count", len(roles)).Str("output", out).Msg("exported directory roles")
	return nil
}

type ExportGroupsCmd struct {
	exportFlags
}

func (c *ExportGroupsCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	groups, err := rt.client.ListSecurityGroups(ctx)
	if err != nil {
		return err
	}

	out, err := c.resolve(rt, "groups")
	if err != nil {
		return err
	}

	if err := store.WriteGroups(out, store.Format(rt.cfg.Format), groups); err != nil {
		return err
	}

	log.Info().Int("count", len(groups)).Str("output", out).Msg("exported security groups")
	return nil
}

// ExportRelationshipsCmd writes existing relationships in the batch file
// schema so the export can be edited and fed straight back into refresh
// or terminate runs.
type ExportRelationshipsCmd struct {
	exportFlags
}

func (c *ExportRelationshipsCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	items, err := rt.client.ListRelationships(ctx)
	if err != nil {
		return err
	}

	out, err := c.resolve(rt, "relationships")
	if err != nil {
		return err
	}

	// Fresh snapshot, not an append: remove any previous export first.
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}

	if err := rt.records.Append(out, items); err != nil {
		return err
	}

	log.Info().Int("count", len(items)).Str("output", out).Msg("exported relationships")
	return nil
}
