package engine

import "context"

// ExportRows is the opaque streaming cursor returned by ExportSource.Stream.
// The export procedure returns a row set, not a JSON aggregation; Executor
// must never call a method that materializes every row at once.
type ExportRows interface {
	// Next advances to the next row, returning false when exhausted or on error.
	Next() bool
	// Values returns the current row's column values as strings, ready to be
	// written as one CSV line.
	Values() []string
	// Err returns the first error encountered by Next, if any.
	Err() error
	// Close releases the underlying cursor/connection.
	Close() error
}

// ExportSource is the opaque streaming source wrapping the database export
// procedure: input (key, effective_date, asof_indicator), output a row set.
// The core never depends on how rows are produced, only on this narrow
// interface, so the real procedure invocation can be swapped or stubbed
// without touching Executor.
type ExportSource interface {
	Stream(ctx context.Context, indexKey string, effectiveDate int, asofIndicator string) (ExportRows, error)
}
