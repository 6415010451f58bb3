package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/mono/internal/engine"
)

var _ engine.ExportSource = (*ExportSource)(nil)

// ExportSource invokes the database's export procedure and streams its
// result set as an engine.ExportRows cursor. The procedure itself is an
// external collaborator: this adapter only knows its call signature, not
// its implementation, so it can be repointed at a different procedure name
// without touching the Executor.
type ExportSource struct {
	pool          *pgxpool.Pool
	procedureName string
}

// NewExportSource wraps pool, invoking procedureName as
// "SELECT * FROM <procedureName>($1, $2, $3)" for every unit.
func NewExportSource(pool *pgxpool.Pool, procedureName string) *ExportSource {
	if procedureName == "" {
		procedureName = "export_rows"
	}
	return &ExportSource{pool: pool, procedureName: procedureName}
}

// Stream invokes the export procedure for one unit's natural key.
func (s *ExportSource) Stream(ctx context.Context, indexKey string, effectiveDate int, asofIndicator string) (engine.ExportRows, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s($1, $2, $3)", s.procedureName),
		indexKey, effectiveDate, asofIndicator)
	if err != nil {
		return nil, fmt.Errorf("invoke export procedure: %w", err)
	}
	return &rowCursor{rows: rows}, nil
}

// rowCursor adapts pgx.Rows to engine.ExportRows, converting every column
// value to its text form as the CSV encoder expects.
type rowCursor struct {
	rows   pgx.Rows
	values []string
	err    error
}

func (c *rowCursor) Next() bool {
	if !c.rows.Next() {
		return false
	}
	vals, err := c.rows.Values()
	if err != nil {
		c.err = fmt.Errorf("decode row: %w", err)
		return false
	}
	values := make([]string, len(vals))
	for i, v := range vals {
		values[i] = formatValue(v)
	}
	c.values = values
	return true
}

func (c *rowCursor) Values() []string { return c.values }

func (c *rowCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *rowCursor) Close() error {
	c.rows.Close()
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%v", v)
}
