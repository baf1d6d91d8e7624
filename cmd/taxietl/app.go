package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taxietl/internal/config"
	"taxietl/internal/datasource/httpds"
	"taxietl/internal/lookup"
	"taxietl/internal/pipeline"
	"taxietl/internal/schema"
	"taxietl/internal/source"
	"taxietl/internal/storage"
	_ "taxietl/internal/storage/all"
)

// app holds the process environment so tests can run commands in-process.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// loadDotenv reads --env-file into the process environment before
	// TAXIETL_* variables are applied.
	loadDotenv bool

	// tempDir overrides where Parquet downloads are staged.
	tempDir string

	flags sharedFlags
}

// run executes the command line and returns the process exit code.
func (a *app) run(args []string) int {
	log.SetOutput(a.stderr)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitCodeForError(err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taxietl",
		Short: "Load NYC taxi trip data into a relational database",
		Long: `taxietl streams a monthly NYC taxi trip file into a database table in
bounded batches, then refreshes the taxi zone lookup table.

Precedence for every setting: flags > TAXIETL_* environment > --config file > defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	a.flags.register(root.PersistentFlags())

	root.AddCommand(a.ingestCmd(), a.ingestParquetCmd(), a.zonesCmd(), a.validateCmd())
	return root
}

func (a *app) ingestCmd() *cobra.Command {
	src := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stream a gzip CSV trip file into the database",
		Example: `  taxietl ingest --year 2021 --month 1
  taxietl ingest --url ./yellow_tripdata_2021-01.csv.gz --storage sqlite --dsn ny_taxi.db`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.resolve(cmd, config.Defaults(), src)
			if err != nil {
				return err
			}
			return a.ingest(cmd.Context(), p)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&src.url, "url", "", "source URL, local path or file:// URL (default derived from --year/--month)")
	fs.StringVar(&src.dataset, "dataset", "yellow", "type registry: yellow or green")
	fs.IntVar(&src.year, "year", config.DefaultYear, "trip data year")
	fs.IntVar(&src.month, "month", config.DefaultMonth, "trip data month (1-12)")
	return cmd
}

func (a *app) ingestParquetCmd() *cobra.Command {
	src := &sourceFlags{}
	cmd := &cobra.Command{
		Use:     "ingest-parquet",
		Short:   "Download a Parquet trip file and load it into the database",
		Example: `  taxietl ingest-parquet --url https://d37ci6vzurychx.cloudfront.net/trip-data/green_tripdata_2025-11.parquet`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.resolve(cmd, config.ParquetDefaults(), src)
			if err != nil {
				return err
			}
			p.Source.Kind = config.SourceParquet
			return a.ingest(cmd.Context(), p)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&src.url, "url", config.ParquetURL, "source URL, local path or file:// URL")
	fs.StringVar(&src.dataset, "dataset", "green", "type registry: yellow or green")
	return cmd
}

func (a *app) zonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "Replace the taxi zone lookup table",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.resolve(cmd, config.Defaults(), nil)
			if err != nil {
				return err
			}
			p.Lookup.Enabled = true
			return a.zones(cmd.Context(), p)
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration and exit",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.resolve(cmd, config.Defaults(), nil)
			if err != nil {
				return err
			}
			if err := a.checkPipeline(p); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Configuration is valid")
			return nil
		},
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: %s accepts no arguments, received %q", errUsage, cmd.CommandPath(), args)
	}
	return nil
}

func (a *app) opener(p config.Pipeline) *source.Opener {
	o := source.NewOpener(httpds.NewClient(httpds.Config{}), p.Parser.Options)
	o.TempDir = a.tempDir
	return o
}

func (a *app) ingest(ctx context.Context, p config.Pipeline) error {
	if err := a.checkPipeline(p); err != nil {
		return err
	}
	cfg, err := pipeline.FromPipeline(p, a.flags.verbose)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if a.flags.verbose {
		log.Printf("pipeline: storage=%s dsn=%s", p.Storage.Kind, config.Redacted(p.Storage.DB.ConnString(p.Storage.Kind)))
	}
	repo, err := storage.New(ctx, storageConfig(p))
	if err != nil {
		return err
	}
	defer repo.Close()

	r := pipeline.New(cfg, a.opener(p), repo, pipeline.NewReporter(a.stdout))
	defer setupMetrics(p.Metrics, p.Job, r.RunID(), a.flags.verbose)()

	start := time.Now()
	res, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if a.flags.verbose {
		log.Printf("completed %d rows in %s", res.RowsInserted, time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func (a *app) zones(ctx context.Context, p config.Pipeline) error {
	if err := a.checkPipeline(p); err != nil {
		return err
	}
	repo, err := storage.New(ctx, storageConfig(p))
	if err != nil {
		return err
	}
	defer repo.Close()
	defer setupMetrics(p.Metrics, p.Job, uuid.NewString(), a.flags.verbose)()

	n, err := lookup.NewLoader(a.opener(p), repo, schema.Zones()).Load(ctx, p.Lookup.URL, p.Lookup.Table)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("zones: interrupted: %w", err)
		}
		return err
	}
	pipeline.NewReporter(a.stdout).ZonesInserted(n)
	return nil
}
