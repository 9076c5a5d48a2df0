package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tabletask/internal/table"
	"tabletask/internal/task"
)

// Querier is the slice of a pgx pool the lookup needs. *pgxpool.Pool
// satisfies it; tests substitute a fake.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SQLLookup resolves a replacement id for each row by querying a database:
// the classic "find the new id for each legacy id" enrichment. Query must
// select exactly one value and take the row's id as $1.
//
// A query that matches no rows is a recoverable row failure; anything else
// (connection refused, bad SQL) is fatal, since it would fail for every row.
type SQLLookup struct {
	ctx      context.Context
	db       Querier
	query    string
	idColumn string
	target   string
}

// NewSQLLookup builds a lookup reading ids from idColumn and writing results
// to target. The context is held for the lifetime of the task run, the same
// way the row loop itself is bounded by it.
func NewSQLLookup(ctx context.Context, db Querier, query, idColumn, target string) *SQLLookup {
	return &SQLLookup{
		ctx:      ctx,
		db:       db,
		query:    query,
		idColumn: idColumn,
		target:   target,
	}
}

func (l *SQLLookup) Apply(row table.Row) (map[string]string, error) {
	id, err := row.Value(l.idColumn)
	if err != nil {
		return nil, err
	}

	var result string
	err = l.db.QueryRow(l.ctx, l.query, id).Scan(&result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, task.Rowf("no result for id %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up id %q: %w", id, err)
	}
	return map[string]string{l.target: result}, nil
}

// HasPreviousResult treats a non-empty target column as already done.
func (l *SQLLookup) HasPreviousResult(row table.Row) bool {
	return row[l.target] != ""
}
