// This file adds a lightweight linter for Pipeline values. It performs static
// checks and returns a list of issues (errors and warnings) that the CLI can
// surface before any network or database work starts.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config
// (e.g. "storage.db.table").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateLookup(p.Lookup)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case SourceCSV, SourceParquet:
	case "":
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want csv or parquet", s.Kind),
		})
	}

	switch s.Dataset {
	case "yellow", "green":
	case "":
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.dataset",
			Message:  "no dataset registry selected; columns will be written as inferred",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.dataset",
			Message:  fmt.Sprintf("unknown dataset %q; want yellow or green", s.Dataset),
		})
	}

	if s.URL == "" && s.Kind == SourceCSV {
		if s.Year < 2009 || s.Year > 9999 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.year",
				Message:  fmt.Sprintf("year=%d is outside the published range", s.Year),
			})
		}
		if s.Month < 1 || s.Month > 12 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.month",
				Message:  fmt.Sprintf("month=%d must be between 1 and 12", s.Month),
			})
		}
	}
	if s.URL != "" {
		if u, err := url.Parse(s.URL); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.url",
				Message:  fmt.Sprintf("invalid url: %v", err),
			})
		} else if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.url",
				Message:  fmt.Sprintf("unsupported url scheme %q", u.Scheme),
			})
		}
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if db.DSN == "" && s.Kind != "sqlite" {
		if strings.TrimSpace(db.Host) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.host",
				Message:  "storage.db.host must not be empty when no dsn is given",
			})
		}
		if db.Port <= 0 || db.Port > 65535 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.port",
				Message:  fmt.Sprintf("port=%d is not a valid TCP port", db.Port),
			})
		}
		if db.User == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.db.user",
				Message:  "no database user; the driver default will be used",
			})
		}
	}

	return issues
}

func validateLookup(l Lookup) []Issue {
	if !l.Enabled {
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(l.URL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "lookup.url",
			Message:  "lookup is enabled but lookup.url is empty",
		})
	}
	if strings.TrimSpace(l.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "lookup.table",
			Message:  "lookup is enabled but lookup.table is empty",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; must be at least 1", r.BatchSize),
		})
	} else if r.BatchSize > 1_000_000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; large batches raise peak memory", r.BatchSize),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prom":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prom backend requires a pushgateway url",
			})
		}
	case "datadog":
		if m.StatsdAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.statsd_addr",
				Message:  "datadog backend without statsd_addr sends to 127.0.0.1:8125",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, prom or datadog", m.Backend),
		})
	}
	return issues
}
