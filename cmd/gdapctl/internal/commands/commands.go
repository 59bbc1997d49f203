package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/partnerled/gdapctl/internal/auth"
	"github.com/partnerled/gdapctl/internal/config"
	"github.com/partnerled/gdapctl/internal/engine"
	"github.com/partnerled/gdapctl/internal/logger"
	"github.com/partnerled/gdapctl/internal/partner"
	"github.com/partnerled/gdapctl/internal/store"
	"github.com/partnerled/gdapctl/internal/telemetry"
	"github.com/partnerled/gdapctl/internal/util"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Config  string
	Version string
}

// runtime bundles the wired collaborators every command needs.
type runtime struct {
	cfg      config.Config
	records  store.RecordStore
	auth     auth.Authenticator
	client   *partner.Client
	shutdown func(context.Context) error
}

// setup loads configuration, configures logging and telemetry, and wires
// the partner client. Commands call close(ctx) when done.
func setup(ctx context.Context, globals *Globals) (*runtime, error) {
	cfg := config.Default()
	if globals.Config != "" {
		var err error
		cfg, err = config.Load(globals.Config)
		if err != nil {
			return nil, err
		}
	}

	log.Logger = logger.Setup(globals.Debug, cfg.LogDir)

	shutdown, err := telemetry.Init(ctx, "gdapctl", globals.Version)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.ClientID == "" {
		cfg.Auth.ClientID = os.Getenv("GDAP_CLIENT_ID")
	}
	if cfg.Auth.ClientSecret == "" {
		cfg.Auth.ClientSecret = os.Getenv("GDAP_CLIENT_SECRET")
	}
	if cfg.Auth.TokenURL == "" {
		cfg.Auth.TokenURL = os.Getenv("GDAP_TOKEN_URL")
	}

	records, err := store.New(store.Format(cfg.Format))
	if err != nil {
		return nil, err
	}

	authenticator := auth.NewClientCredentials(
		cfg.Auth.TokenURL,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.Scopes,
		cfg.Partner.BaseURL+"/tenantRelationships/delegatedAdminRelationships",
	)

	client := partner.NewClient(cfg.Partner, cfg.RequestTimeout, authenticator)

	return &runtime{
		cfg:      cfg,
		records:  records,
		auth:     authenticator,
		client:   client,
		shutdown: shutdown,
	}, nil
}

func (rt *runtime) close(ctx context.Context) {
	if err := rt.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

// batchFlags are shared by every bulk lifecycle command.
type batchFlags struct {
	Input       string `help:"Input batch file." required:"" type:"existingfile"`
	Output      string `help:"Result file. Defaults to a timestamped file in the output directory." type:"path"`
	Concurrency int    `help:"Worker count override."`
	Retries     int    `help:"Retry ceiling override."`
}

// runBatch executes one lifecycle operation end to end and prints the
// outcome summary.
func runBatch(ctx context.Context, globals *Globals, flags batchFlags, op engine.Op) error {
	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	if flags.Concurrency > 0 {
		rt.cfg.Concurrency = flags.Concurrency
	}
	if flags.Retries > 0 {
		rt.cfg.RetryCeiling = flags.Retries
	}

	// Log the input digest up front so an interrupted run can still be
	// traced back to the exact staging file it consumed.
	fp, err := util.FingerprintFile(flags.Input)
	if err != nil {
		return err
	}
	log.Info().Str("input", flags.Input).Str("fingerprint", fp).Str("op", string(op)).Msg("starting batch")

	output := flags.Output
	if output == "" {
		name := fmt.Sprintf("%s-%s%s", op, time.Now().Format("20060102-150405"), store.Format(rt.cfg.Format).Ext())
		output = filepath.Join(rt.cfg.OutputDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	eng := engine.New(rt.cfg, rt.records, rt.auth,
		rt.client.Relationships(), rt.client.Assignments(),
		&engine.LogReporter{Logger: log.Logger})

	summary, err := eng.Run(ctx, op, flags.Input, output)
	if summary != nil {
		fmt.Printf("run %s: %d succeeded, %d failed, %d skipped (results in %s)\n",
			summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped, summary.OutputPath)
	}

	return err
}
