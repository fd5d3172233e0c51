package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/alexanderramin/strata/internal/artifact"
	"github.com/alexanderramin/strata/internal/cli"
	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/config"
	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/service"
	"github.com/alexanderramin/strata/internal/telemetry"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/afero"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const gcsPrefix = "strata/conflicts"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, formatter.FormatError(err))
		os.Exit(1)
	}
}

func run() (err error) {
	ctx := context.Background()

	// STRATA_CONFIG names an explicit config file; otherwise strata.yaml is
	// looked up in . and ~/.strata.
	cfg, err := config.Load(os.Getenv("STRATA_CONFIG"))
	if err != nil {
		return err
	}

	fd := os.Stdout.Fd()
	if !interactive(fd) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	tel, err := telemetry.Setup(cfg, telemetry.Options{Version: version, TraceOut: os.Stderr})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if serr := tel.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}()

	database, err := db.OpenDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	observers := []service.UseCaseObserver{
		service.NewMetricsUseCaseObserver(tel.Registry),
		service.NewTraceUseCaseObserver(tel.TracerProvider),
	}
	if cfg.LogUseCases {
		observers = append(observers, service.NewLogUseCaseObserver(os.Stderr))
	}

	var confirm cli.ConfirmFunc
	if interactive(os.Stdin.Fd()) && interactive(fd) {
		confirm = cli.PromptConfirm
	}

	app := cli.Wire(database, cli.WireOptions{
		Tenant:         cfg.Tenant,
		User:           cfg.User,
		Location:       cfg.Location(),
		MaxRecurrences: cfg.Recurrence.MaxCount,
		Sink:           sink,
		Observers:      observers,
		Confirm:        confirm,
	})

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

func interactive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// openSink picks the conflict export store named by the config.
func openSink(ctx context.Context, cfg config.Config) (artifact.Sink, func(), error) {
	if cfg.Artifact.Backend != config.BackendGCS {
		return artifact.NewFSSink(afero.NewOsFs(), cfg.Artifact.Dir), func() {}, nil
	}
	gcs, err := artifact.NewGCSSink(ctx, artifact.GCSConfig{
		Bucket:          cfg.Artifact.GCSBucket,
		Prefix:          gcsPrefix,
		Project:         cfg.Artifact.GCSProject,
		CredentialsFile: cfg.Artifact.GCSCredentials,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening artifact store: %w", err)
	}
	return gcs, func() { _ = gcs.Close() }, nil
}
