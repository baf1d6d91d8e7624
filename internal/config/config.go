// Package config defines the configuration model for a taxietl run. A
// Pipeline can be decoded from JSON or YAML, overlaid with TAXIETL_*
// environment variables, and finally with command-line flags.
//
// Example (trimmed):
//
//	job: yellow-2021-01
//	source:  { kind: csv, dataset: yellow, year: 2021, month: 1 }
//	storage: { kind: postgres, db: { host: localhost, name: ny_taxi, table: yellow_taxi_data } }
//	lookup:  { enabled: true, table: zones }
//	runtime: { batch_size: 100000 }
package config

import "encoding/json"

// Source kinds.
const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
)

// Pipeline is the top-level run configuration.
type Pipeline struct {
	// Job labels metrics and log lines.
	Job string `json:"job" yaml:"job"`

	Source  Source        `json:"source" yaml:"source"`
	Parser  Parser        `json:"parser" yaml:"parser"`
	Storage Storage       `json:"storage" yaml:"storage"`
	Lookup  Lookup        `json:"lookup" yaml:"lookup"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics Metrics       `json:"metrics" yaml:"metrics"`
}

// Source identifies the trip file to ingest.
type Source struct {
	// Kind is "csv" (gzip CSV, streamed) or "parquet" (fetched, then opened).
	Kind string `json:"kind" yaml:"kind"`

	// Dataset selects the type registry: "yellow" or "green".
	Dataset string `json:"dataset" yaml:"dataset"`

	// URL overrides the URL derived from Kind, Year and Month. It may also be
	// a local path or file:// URL.
	URL string `json:"url" yaml:"url"`

	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
}

// Parser carries reader options. For CSV, recognized keys are comma,
// lazy_quotes, trim_space and header_map.
type Parser struct {
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the sink.
type Storage struct {
	// Kind selects the backend: postgres, sqlite, mssql or mysql.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig describes the destination database and table. When DSN is empty it
// is built from the discrete connection fields.
type DBConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Name     string `json:"name" yaml:"name"`

	// Table is the destination table, optionally schema-qualified.
	Table string `json:"table" yaml:"table"`
}

// Lookup configures the taxi zone lookup load.
type Lookup struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Table   string `json:"table" yaml:"table"`
}

// RuntimeConfig controls batching.
type RuntimeConfig struct {
	// BatchSize is the maximum number of rows per batch.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Metrics selects a metrics backend: "none", "prom" or "datadog".
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	StatsdAddr     string `json:"statsd_addr" yaml:"statsd_addr"`
}

// Options is a small helper to fetch typed values from free-form maps. It
// performs minimal coercion and returns the provided default when a key is
// absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json yields float64 and
// yaml.v3 yields int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of the string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of the object at key. Returns
// an empty map when the key is missing or not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	v, ok := o[key]
	if !ok {
		return res
	}
	// yaml.v3 decodes nested maps inside Options as Options.
	var m map[string]any
	switch t := v.(type) {
	case Options:
		m = t
	case map[string]any:
		m = t
	case map[string]string:
		for k, s := range t {
			res[k] = s
		}
		return res
	}
	for k, vv := range m {
		if s, ok := vv.(string); ok {
			res[k] = s
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object into an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
