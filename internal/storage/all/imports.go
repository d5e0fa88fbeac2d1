// Package all wires the built-in warehouse backends into the storage factory.
//
// It exists for side effects only: a blank import runs the init functions of
// each backend, which register their factories and DDL bootstrappers. After
//
//	import _ "sparkify/internal/storage/all"
//
// the kinds "postgres", "sqlite", "mssql" and "mysql" are available through storage.New and
// storage.ReplaceTable.
package all

import (
	_ "sparkify/internal/storage/mssql"
	_ "sparkify/internal/storage/mysql"
	_ "sparkify/internal/storage/postgres"
	_ "sparkify/internal/storage/sqlite"
)
