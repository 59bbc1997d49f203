package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/partnerled/gdapctl/internal/config"
	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/partnerled/gdapctl/internal/logger"
	"github.com/partnerled/gdapctl/internal/store"
	"github.com/rs/zerolog/log"
)

// InitCmd creates the working directories and drops template files an
// operator edits before the first run.
type InitCmd struct {
	Force bool `help:"Overwrite existing template files." default:"false"`
}

func (c *InitCmd) Run(ctx context.Context, globals *Globals) error {
	cfg := config.Default()
	if globals.Config != "" {
		var err error
		cfg, err = config.Load(globals.Config)
		if err != nil {
			return err
		}
	}

	// The log directory does not exist yet, so console only.
	log.Logger = logger.Setup(globals.Debug, "")

	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	records, err := store.New(store.Format(cfg.Format))
	if err != nil {
		return err
	}

	template := filepath.Join(cfg.InputDir, "relationships"+store.Format(cfg.Format).Ext())
	if err := c.writeTemplate(records, template, gdap.WorkItem{
		Kind:        gdap.KindRelationship,
		CustomerKey: "00000000-0000-0000-0000-000000000000",
		DisplayName: "example-relationship",
		RoleSet:     []string{"62e90394-69f5-4237-9190-012177145e10"},
		Status:      gdap.StatusPending,
	}); err != nil {
		return err
	}

	assignTemplate := filepath.Join(cfg.InputDir, "assignments"+store.Format(cfg.Format).Ext())
	if err := c.writeTemplate(records, assignTemplate, gdap.WorkItem{
		Kind:        gdap.KindAssignment,
		CustomerKey: "00000000-0000-0000-0000-000000000000",
		GroupKey:    "11111111-1111-1111-1111-111111111111",
		RoleSet:     []string{"62e90394-69f5-4237-9190-012177145e10"},
		Status:      gdap.StatusPending,
	}); err != nil {
		return err
	}

	fmt.Printf("Initialized working directories:\n")
	fmt.Printf("  input:  %s\n", cfg.InputDir)
	fmt.Printf("  output: %s\n", cfg.OutputDir)
	fmt.Printf("  logs:   %s\n", cfg.LogDir)
	fmt.Println()
	fmt.Println("Edit the template batch files in the input directory, then run:")
	fmt.Println("  gdapctl export customers")
	fmt.Println("  gdapctl relationship create --input " + template)

	return nil
}

func (c *InitCmd) writeTemplate(records store.RecordStore, path string, example gdap.WorkItem) error {
	if _, err := os.Stat(path); err == nil && !c.Force {
		log.Info().Str("path", path).Msg("template exists, skipping (use --force to overwrite)")
		return nil
	}

	if c.Force {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
	}

	if err := records.Append(path, []gdap.WorkItem{example}); err != nil {
		return fmt.Errorf("failed to write template %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("wrote template batch file")
	return nil
}
