// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects makes these storage kinds available:
//
//   - "postgres", "postgresql" (taxietl/internal/storage/postgres)
//   - "sqlite"                 (taxietl/internal/storage/sqlite)
//   - "mssql", "sqlserver"     (taxietl/internal/storage/mssql)
//   - "mysql"                  (taxietl/internal/storage/mysql)
//
// A binary that needs only a subset can import the backends directly.
package all

import (
	_ "taxietl/internal/storage/mssql"
	_ "taxietl/internal/storage/mysql"
	_ "taxietl/internal/storage/postgres"
	_ "taxietl/internal/storage/sqlite"
)
