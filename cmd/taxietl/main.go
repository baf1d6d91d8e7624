// Command taxietl loads NYC taxi trip records into a relational database in
// bounded batches and refreshes the taxi zone lookup table.
//
// Usage:
//
//	taxietl ingest --year 2021 --month 1
//	taxietl ingest-parquet --storage sqlite --dsn ny_taxi.db
//	taxietl zones
//	taxietl validate --config pipeline.yaml
package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(exitGeneral)
		}
	}()

	a := &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		getenv:     os.Getenv,
		loadDotenv: true,
	}
	os.Exit(a.run(os.Args[1:]))
}
