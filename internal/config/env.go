package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "TAXIETL_"

// ApplyEnv overlays TAXIETL_* variables onto p. getenv is usually os.Getenv;
// unset and empty variables are ignored. Malformed integers are reported
// with the variable name.
func ApplyEnv(p *Pipeline, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(name string, dst *int) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s=%q is not an integer", EnvPrefix, name, v))
			return
		}
		*dst = n
	}

	str("JOB", &p.Job)
	str("SOURCE_URL", &p.Source.URL)
	str("DATASET", &p.Source.Dataset)
	num("YEAR", &p.Source.Year)
	num("MONTH", &p.Source.Month)

	str("STORAGE", &p.Storage.Kind)
	str("DSN", &p.Storage.DB.DSN)
	str("PG_USER", &p.Storage.DB.User)
	str("PG_PASS", &p.Storage.DB.Password)
	str("PG_HOST", &p.Storage.DB.Host)
	num("PG_PORT", &p.Storage.DB.Port)
	str("PG_DB", &p.Storage.DB.Name)
	str("TABLE", &p.Storage.DB.Table)

	num("CHUNKSIZE", &p.Runtime.BatchSize)

	str("ZONES_URL", &p.Lookup.URL)
	str("ZONES_TABLE", &p.Lookup.Table)
	if v := strings.TrimSpace(getenv(EnvPrefix + "SKIP_ZONES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sSKIP_ZONES=%q is not a boolean", EnvPrefix, v))
		} else {
			p.Lookup.Enabled = !b
		}
	}

	str("METRICS_BACKEND", &p.Metrics.Backend)
	str("PUSHGATEWAY_URL", &p.Metrics.PushgatewayURL)
	str("STATSD_ADDR", &p.Metrics.StatsdAddr)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
