// Package sink writes finished tables to their destinations.
//
// The lake sink stages each table as Hive-partitioned Parquet files in a local
// directory and then hands the directory to a Publisher, which replaces the
// destination (a local directory or an S3 prefix). Every write fully
// overwrites the previous contents of the table. There is no transaction
// across tables.
//
// Other sinks share the same interface: Memory captures tables for dry runs
// and tests, Warehouse mirrors them into a SQL database, and Multi fans a
// write out to several sinks.
package sink

import (
	"context"

	"sparkify/internal/table"
)

// Sink persists one table under name. partitionBy names the columns that
// become directory levels, outermost first; sinks without a directory layout
// ignore it.
type Sink interface {
	Write(ctx context.Context, t *table.Table, name string, partitionBy ...string) error
}

// Multi writes to each sink in order and stops at the first error.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, t *table.Table, name string, partitionBy ...string) error {
	for _, s := range m {
		if err := s.Write(ctx, t, name, partitionBy...); err != nil {
			return err
		}
	}
	return nil
}
