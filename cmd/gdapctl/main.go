package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/partnerled/gdapctl/cmd/gdapctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Init         commands.InitCmd         `cmd:"" help:"Create the working directories and template files"`
		Export       commands.ExportCmd       `cmd:"" help:"Export partner catalogs and existing relationships"`
		Generate     commands.GenerateCmd     `cmd:"" help:"Generate paired relationship and assignment staging files from the customer catalog"`
		Relationship commands.RelationshipCmd `cmd:"" help:"Bulk operations on delegated admin relationships"`
		Assignment   commands.AssignmentCmd   `cmd:"" help:"Bulk operations on access assignments"`
		Config       string                   `help:"Path to a YAML config file." type:"path"`
		Debug        bool                     `help:"Enable debug mode."`
		Version      kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Config: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}
