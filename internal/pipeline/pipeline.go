// Package pipeline drives one ingestion run: resolve the source, stream
// bounded batches through the normalizer into the destination table, then
// replace the lookup table. Execution is a single goroutine; one batch is
// read, normalized and written before the next is requested.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"taxietl/internal/config"
	"taxietl/internal/datasource"
	"taxietl/internal/lookup"
	"taxietl/internal/metrics"
	"taxietl/internal/parser"
	"taxietl/internal/schema"
	"taxietl/internal/source"
	"taxietl/internal/storage"
	"taxietl/internal/transformer"
)

// Sources opens the inputs of a run. *source.Opener implements it.
type Sources interface {
	Stream(ctx context.Context, rawURL string, batchSize int) (parser.BatchReader, error)
	Fetch(ctx context.Context, rawURL string) (*source.Fetched, error)
}

// Test seams.
var (
	newRunID    = uuid.NewString
	openFetched = source.OpenFetched
	now         = time.Now
)

// Config parameterizes one run for a (dataset, destination table) pair.
type Config struct {
	Job       string
	Kind      string // config.SourceCSV or config.SourceParquet
	URL       string
	Table     string
	BatchSize int
	Registry  schema.Registry

	// LookupURL and LookupTable enable the zones load when both are set.
	LookupURL   string
	LookupTable string

	Verbose bool
}

// FromPipeline derives a run Config from a validated pipeline model.
func FromPipeline(p config.Pipeline, verbose bool) (Config, error) {
	dataset := p.Source.Dataset
	if dataset == "" {
		dataset = schema.YellowName
		if p.Source.Kind == config.SourceParquet {
			dataset = schema.GreenName
		}
	}
	reg, err := schema.ByName(dataset)
	if err != nil {
		return Config{}, err
	}
	c := Config{
		Job:       p.Job,
		Kind:      p.Source.Kind,
		URL:       p.SourceURL(),
		Table:     p.Storage.DB.Table,
		BatchSize: p.Runtime.BatchSize,
		Registry:  reg,
		Verbose:   verbose,
	}
	if p.Lookup.Enabled {
		c.LookupURL = p.Lookup.URL
		c.LookupTable = p.Lookup.Table
	}
	return c, nil
}

// Result summarizes a run.
type Result struct {
	RunID        string
	State        State
	Batches      int
	RowsRead     int64
	RowsInserted int64
	CellsNulled  int64
	TableCreated bool
	LookupRows   int64
	Elapsed      time.Duration
}

// Runner executes a single run. It is not reusable.
type Runner struct {
	cfg      Config
	sources  Sources
	repo     storage.Repository
	reporter *Reporter

	state State
	runID string

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// New returns a Runner in the Idle state.
func New(cfg Config, sources Sources, repo storage.Repository, reporter *Reporter) *Runner {
	if reporter == nil {
		reporter = NewReporter(nil)
	}
	if cfg.Job == "" {
		cfg.Job = "taxietl"
	}
	return &Runner{cfg: cfg, sources: sources, repo: repo, reporter: reporter, runID: newRunID()}
}

// State returns the current state.
func (r *Runner) State() State { return r.state }

// RunID returns the run's unique id.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) transition(to State) {
	if !canTransition(r.state, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.state, to))
	}
	from := r.state
	r.state = to
	if r.cfg.Verbose {
		log.Printf("pipeline: run=%s %s -> %s", r.runID, from, to)
	}
	if r.OnTransition != nil {
		r.OnTransition(from, to)
	}
}

// Run ingests the source into the destination table and then loads the
// lookup table. The lookup load runs even when ingestion fails; the run is
// Completed only when both succeed. Rows already appended stay in place on
// failure.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.state != Idle {
		return Result{}, fmt.Errorf("pipeline: run already started (state=%s)", r.state)
	}
	if r.cfg.BatchSize <= 0 {
		return Result{}, fmt.Errorf("pipeline: batch size must be > 0, got %d", r.cfg.BatchSize)
	}

	start := now()
	res := Result{RunID: r.runID}
	log.Printf("pipeline: run=%s kind=%s table=%s batch=%d url=%s",
		r.runID, r.cfg.Kind, r.cfg.Table, r.cfg.BatchSize, r.cfg.URL)

	err := r.ingest(ctx, &res)
	if err != nil {
		log.Printf("pipeline: run=%s ingest failed after %d batches: %v", r.runID, res.Batches, err)
	}

	if r.cfg.LookupURL != "" && r.cfg.LookupTable != "" {
		n, lerr := r.loadLookup(ctx)
		res.LookupRows = n
		err = errors.Join(err, lerr)
	}

	if err != nil {
		r.transition(Failed)
	} else {
		r.transition(Completed)
	}
	res.State = r.state
	res.Elapsed = now().Sub(start)
	metrics.RecordStep(r.cfg.Job, metrics.StepRun, err, res.Elapsed)

	r.logSummary(ctx, res)
	return res, err
}

func (r *Runner) ingest(ctx context.Context, res *Result) error {
	rd, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()
	defer rd.Close()

	if r.state == Idle {
		r.transition(Streaming)
	}

	norm := transformer.NewNormalizer(r.cfg.Registry)
	w := storage.NewWriter(r.repo, r.cfg.Table, r.cfg.Registry)

	for {
		raw, err := rd.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return sourceErr(fmt.Errorf("read batch %d: %w", res.Batches+1, err))
		}
		res.RowsRead += int64(raw.Len())
		metrics.RecordRows(r.cfg.Job, "read", int64(raw.Len()))

		b, stats := norm.Apply(raw)
		raw.Release()
		res.CellsNulled += int64(stats.Nulled)
		metrics.RecordRows(r.cfg.Job, "nulled", int64(stats.Nulled))
		if stats.First != nil && r.cfg.Verbose {
			log.Printf("pipeline: run=%s batch %d: %d cells set to NULL, first: %v", r.runID, res.Batches+1, stats.Nulled, stats.First)
		}

		if !res.TableCreated {
			t0 := now()
			_, err := w.EnsureSchema(ctx, b)
			metrics.RecordStep(r.cfg.Job, metrics.StepSchema, err, now().Sub(t0))
			if err != nil {
				b.Release()
				return err
			}
			res.TableCreated = true
			r.reporter.TableCreated()
		}

		t0 := now()
		n, err := w.AppendRows(ctx, b)
		b.Release()
		metrics.RecordStep(r.cfg.Job, metrics.StepBatch, err, now().Sub(t0))
		if err != nil {
			return fmt.Errorf("batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.RowsInserted += n
		metrics.RecordRows(r.cfg.Job, "inserted", n)
		metrics.RecordBatches(r.cfg.Job, 1)
		r.reporter.Inserted(n)
	}
}

// open returns a batch reader for the configured source plus a release
// function for any temp storage, which the caller must always invoke.
func (r *Runner) open(ctx context.Context) (parser.BatchReader, func(), error) {
	noop := func() {}
	if !source.NeedsDownload(r.cfg.Kind) {
		rd, err := r.sources.Stream(ctx, r.cfg.URL, r.cfg.BatchSize)
		if err != nil {
			return nil, noop, sourceErr(err)
		}
		return rd, noop, nil
	}

	r.transition(Downloading)
	t0 := now()
	f, err := r.sources.Fetch(ctx, r.cfg.URL)
	metrics.RecordStep(r.cfg.Job, metrics.StepDownload, err, now().Sub(t0))
	if err != nil {
		return nil, noop, sourceErr(err)
	}
	if r.cfg.Verbose {
		log.Printf("pipeline: run=%s fetched %s (%d bytes)", r.runID, f.Path, f.Size)
	}
	r.transition(Streaming)

	rd, err := openFetched(f, r.cfg.BatchSize)
	if err != nil {
		f.Release()
		return nil, noop, sourceErr(err)
	}
	return rd, f.Release, nil
}

func (r *Runner) loadLookup(ctx context.Context) (int64, error) {
	t0 := now()
	l := lookup.NewLoader(r.sources, r.repo, schema.Zones())
	n, err := l.Load(ctx, r.cfg.LookupURL, r.cfg.LookupTable)
	metrics.RecordStep(r.cfg.Job, metrics.StepLookup, err, now().Sub(t0))
	if err != nil {
		return 0, err
	}
	metrics.RecordRows(r.cfg.Job, "zones", n)
	r.reporter.ZonesInserted(n)
	return n, nil
}

func (r *Runner) logSummary(ctx context.Context, res Result) {
	log.Printf("pipeline: run=%s state=%s batches=%d read=%d inserted=%d nulled=%d zones=%d elapsed=%s",
		res.RunID, res.State, res.Batches, res.RowsRead, res.RowsInserted, res.CellsNulled,
		res.LookupRows, res.Elapsed.Truncate(time.Millisecond))
	if !r.cfg.Verbose || !res.TableCreated {
		return
	}
	if n, err := r.repo.CountRows(ctx, r.cfg.Table); err != nil {
		log.Printf("pipeline: count %s: %v", r.cfg.Table, err)
	} else {
		log.Printf("pipeline: %s now holds %d rows", r.cfg.Table, n)
	}
}

// sourceErr classifies err as a source failure unless it already carries a
// classification or is a context error.
func sourceErr(err error) error {
	if err == nil ||
		errors.Is(err, datasource.ErrSourceUnavailable) ||
		errors.Is(err, storage.ErrSinkUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", datasource.ErrSourceUnavailable, err)
}
