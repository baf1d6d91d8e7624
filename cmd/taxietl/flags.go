package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taxietl/internal/config"
	"taxietl/internal/storage"
)

// sharedFlags are registered on the root command and apply to every
// subcommand.
type sharedFlags struct {
	configPath string
	envFile    string
	verbose    bool

	pgUser, pgPass, pgHost, pgDB string
	pgPort                       int
	storageKind, dsn, table      string
	chunksize                    int

	skipZones  bool
	zonesURL   string
	zonesTable string

	metricsBackend, pushgatewayURL, statsdAddr string
}

func (f *sharedFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "pipeline file (.json, .yaml or .yml)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file with TAXIETL_* variables; missing file is ignored")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "verbose diagnostics on stderr")

	fs.StringVar(&f.pgUser, "pg-user", config.DefaultUser, "database user")
	fs.StringVar(&f.pgPass, "pg-pass", config.DefaultPassword, "database password")
	fs.StringVar(&f.pgHost, "pg-host", config.DefaultHost, "database host")
	fs.IntVar(&f.pgPort, "pg-port", config.DefaultPort, "database port")
	fs.StringVar(&f.pgDB, "pg-db", config.DefaultDB, "database name")
	fs.StringVar(&f.storageKind, "storage", config.DefaultStorage, "storage backend (postgres, sqlite, mssql, mysql)")
	fs.StringVar(&f.dsn, "dsn", "", "full connection string; overrides the --pg-* flags")
	fs.StringVar(&f.table, "table", "", "destination table (default depends on the command)")
	fs.IntVar(&f.chunksize, "chunksize", config.DefaultBatchSize, "rows per batch")

	fs.BoolVar(&f.skipZones, "skip-zones", false, "do not load the taxi zone lookup table")
	fs.StringVar(&f.zonesURL, "zones-url", config.ZonesURL, "taxi zone lookup CSV")
	fs.StringVar(&f.zonesTable, "zones-table", config.DefaultZonesTable, "taxi zone lookup table")

	fs.StringVar(&f.metricsBackend, "metrics-backend", "none", "metrics backend (none, prom, datadog)")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL for --metrics-backend=prom")
	fs.StringVar(&f.statsdAddr, "statsd-addr", "", "DogStatsD address for --metrics-backend=datadog")
}

// sourceFlags are registered on the ingest commands only.
type sourceFlags struct {
	url     string
	dataset string
	year    int
	month   int
}

// resolve builds the effective pipeline: defaults, then the config file,
// then TAXIETL_* environment, then flags the user set explicitly.
func (a *app) resolve(cmd *cobra.Command, base config.Pipeline, src *sourceFlags) (config.Pipeline, error) {
	f := &a.flags
	p := base

	if a.loadDotenv && f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
			return p, fmt.Errorf("%w: env file %s: %w", errUsage, f.envFile, err)
		}
	}

	if f.configPath != "" {
		var err error
		if p, err = config.Load(f.configPath, p); err != nil {
			return p, fmt.Errorf("%w: %w", errUsage, err)
		}
	}

	if err := config.ApplyEnv(&p, a.getenv); err != nil {
		return p, fmt.Errorf("%w: %w", errUsage, err)
	}

	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("pg-user", func() { p.Storage.DB.User = f.pgUser })
	set("pg-pass", func() { p.Storage.DB.Password = f.pgPass })
	set("pg-host", func() { p.Storage.DB.Host = f.pgHost })
	set("pg-port", func() { p.Storage.DB.Port = f.pgPort })
	set("pg-db", func() { p.Storage.DB.Name = f.pgDB })
	set("storage", func() { p.Storage.Kind = f.storageKind })
	set("dsn", func() { p.Storage.DB.DSN = f.dsn })
	set("table", func() { p.Storage.DB.Table = f.table })
	set("chunksize", func() { p.Runtime.BatchSize = f.chunksize })
	set("skip-zones", func() { p.Lookup.Enabled = !f.skipZones })
	set("zones-url", func() { p.Lookup.URL = f.zonesURL })
	set("zones-table", func() { p.Lookup.Table = f.zonesTable })
	set("metrics-backend", func() { p.Metrics.Backend = f.metricsBackend })
	set("pushgateway-url", func() { p.Metrics.PushgatewayURL = f.pushgatewayURL })
	set("statsd-addr", func() { p.Metrics.StatsdAddr = f.statsdAddr })

	if src != nil {
		set("url", func() { p.Source.URL = src.url })
		set("dataset", func() { p.Source.Dataset = src.dataset })
		set("year", func() { p.Source.Year = src.year })
		set("month", func() { p.Source.Month = src.month })
	}
	return p, nil
}

// checkPipeline logs every issue and fails on errors.
func (a *app) checkPipeline(p config.Pipeline) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s\n", iss.Error())
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("%w: configuration has %d issue(s)", errUsage, len(issues))
	}
	return nil
}

func storageConfig(p config.Pipeline) storage.Config {
	return storage.Config{
		Kind: p.Storage.Kind,
		DSN:  p.Storage.DB.ConnString(p.Storage.Kind),
	}
}
