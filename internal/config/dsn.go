package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ConnString returns the connection string for the configured storage kind.
// An explicit DSN wins; otherwise one is assembled from the discrete fields
// with credentials escaped.
func (d DBConfig) ConnString(kind string) string {
	if d.DSN != "" {
		return d.DSN
	}
	hostPort := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	switch kind {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = hostPort
		cfg.DBName = d.Name
		cfg.ParseTime = true
		return cfg.FormatDSN()
	case "mssql":
		q := url.Values{}
		if d.Name != "" {
			q.Set("database", d.Name)
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     hostPort,
			RawQuery: q.Encode(),
		}
		return u.String()
	case "sqlite":
		name := d.Name
		if name == "" {
			name = DefaultDB
		}
		if name == ":memory:" || strings.ContainsAny(name, "./:") {
			return name
		}
		return name + ".db"
	default:
		u := url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(d.User, d.Password),
			Host:   hostPort,
			Path:   "/" + d.Name,
		}
		return u.String()
	}
}

// Redacted returns s with any URL password replaced, for log lines.
func Redacted(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	return u.Redacted()
}
