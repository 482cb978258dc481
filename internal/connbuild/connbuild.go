// Package connbuild builds SQL Server connection strings from host/database
// pairs and selects an authentication method. This is an external
// collaborator per spec.md §6 ("The engine must not embed credentials or
// infer authentication mode") — the engine only ever receives an opaque,
// finished DSN string.
//
// Grounded on redbco-redb-open's
// services/anchor/internal/database/mssql/connection.go, which assembles
// SQL Server DSNs with strings.Builder the same way.
package connbuild

import (
	"strconv"
	"strings"
)

// Options controls how a connection string is assembled.
type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	ReadOnly bool // application intent (spec.md §5: source connections only)
}

// isAzure detects Azure SQL hosts, per spec.md §6: "Azure AD for hosts
// matching *.database.windows.net; integrated security otherwise".
func isAzure(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), ".database.windows.net")
}

// Build assembles a "sqlserver://" DSN for github.com/microsoft/go-mssqldb,
// choosing Active Directory default auth for Azure SQL hosts and integrated
// (Windows) security otherwise when no explicit credentials are supplied.
// Unless the caller already set one, an unbounded connect timeout is
// appended (spec.md §5: "both source and target connection strings are
// adjusted to specify an unbounded connect timeout unless one is already
// present"). ApplicationIntent=ReadOnly is appended when ReadOnly is set
// (spec.md §5: "all source connection strings have read-only application
// intent applied before use").
func Build(opts Options) string {
	var b strings.Builder
	b.WriteString("sqlserver://")

	if opts.User != "" {
		b.WriteString(opts.User)
		if opts.Password != "" {
			b.WriteString(":")
			b.WriteString(opts.Password)
		}
		b.WriteString("@")
	}

	b.WriteString(opts.Host)
	if opts.Port != 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(opts.Port))
	}

	b.WriteString("?database=")
	b.WriteString(opts.Database)

	if opts.User == "" {
		if isAzure(opts.Host) {
			b.WriteString("&fedauth=ActiveDirectoryDefault")
		} else {
			b.WriteString("&integratedSecurity=true")
		}
	}

	b.WriteString("&dial+timeout=0")

	if opts.ReadOnly {
		b.WriteString("&ApplicationIntent=ReadOnly")
	}

	return b.String()
}

// EnsureUnboundedTimeout appends an unbounded connect timeout to an
// already-built DSN (e.g. one supplied verbatim via --source-conn /
// --target-conn) unless it already specifies one, per spec.md §5.
func EnsureUnboundedTimeout(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "dial timeout") || strings.Contains(strings.ToLower(dsn), "dial+timeout") {
		return dsn
	}
	sep := "&"
	if !strings.Contains(dsn, "?") {
		sep = "?"
	}
	return dsn + sep + "dial+timeout=0"
}

// EnsureReadOnlyIntent appends ApplicationIntent=ReadOnly to an
// already-built source DSN unless already present, per spec.md §5.
func EnsureReadOnlyIntent(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "applicationintent") {
		return dsn
	}
	sep := "&"
	if !strings.Contains(dsn, "?") {
		sep = "?"
	}
	return dsn + sep + "ApplicationIntent=ReadOnly"
}
