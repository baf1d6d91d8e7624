package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Remote locations of the public NYC TLC files.
const (
	CSVURLTemplate = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download/yellow/yellow_tripdata_%04d-%02d.csv.gz"
	ParquetURL     = "https://d37ci6vzurychx.cloudfront.net/trip-data/green_tripdata_2025-11.parquet"
	ZonesURL       = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download/misc/taxi_zone_lookup.csv"
)

// Default values suitable for a local docker-compose Postgres.
const (
	DefaultJob          = "taxietl"
	DefaultStorage      = "postgres"
	DefaultUser         = "root"
	DefaultPassword     = "root"
	DefaultHost         = "localhost"
	DefaultPort         = 5432
	DefaultDB           = "ny_taxi"
	DefaultYear         = 2021
	DefaultMonth        = 1
	DefaultBatchSize    = 100_000
	DefaultCSVTable     = "yellow_taxi_data"
	DefaultParquetTable = "green_taxi_data"
	DefaultZonesTable   = "zones"
)

// Defaults returns a Pipeline for the CSV ingest of the default month.
func Defaults() Pipeline {
	return Pipeline{
		Job: DefaultJob,
		Source: Source{
			Kind:    SourceCSV,
			Dataset: "yellow",
			Year:    DefaultYear,
			Month:   DefaultMonth,
		},
		Parser: Parser{Options: Options{}},
		Storage: Storage{
			Kind: DefaultStorage,
			DB: DBConfig{
				User:     DefaultUser,
				Password: DefaultPassword,
				Host:     DefaultHost,
				Port:     DefaultPort,
				Name:     DefaultDB,
				Table:    DefaultCSVTable,
			},
		},
		Lookup: Lookup{
			Enabled: true,
			URL:     ZonesURL,
			Table:   DefaultZonesTable,
		},
		Runtime: RuntimeConfig{BatchSize: DefaultBatchSize},
		Metrics: Metrics{Backend: "none"},
	}
}

// ParquetDefaults returns Defaults adjusted for the Parquet ingest mode.
func ParquetDefaults() Pipeline {
	p := Defaults()
	p.Source.Kind = SourceParquet
	p.Source.Dataset = "green"
	p.Storage.DB.Table = DefaultParquetTable
	return p
}

// Load reads a pipeline file on top of base. Files ending in .yaml or .yml
// are decoded with yaml.v3, anything else as JSON. Unknown JSON fields are
// rejected.
func Load(path string, base Pipeline) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	p := base
	p.Parser.Options = make(Options, len(base.Parser.Options))
	for k, v := range base.Parser.Options {
		p.Parser.Options[k] = v
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &p); err != nil {
			return base, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return base, fmt.Errorf("parse json %s: %w", path, err)
		}
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return p, nil
}

// SourceURL returns the URL the source reader should open.
func (p Pipeline) SourceURL() string {
	if p.Source.URL != "" {
		return p.Source.URL
	}
	if p.Source.Kind == SourceParquet {
		return ParquetURL
	}
	return fmt.Sprintf(CSVURLTemplate, p.Source.Year, p.Source.Month)
}
