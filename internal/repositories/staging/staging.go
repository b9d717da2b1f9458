// Package staging holds the truncate-load-promote primitives shared by the
// extractor repositories. Staging tables are scratch space: each load owns
// the whole table for the duration of its transaction.
package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
)

// chunkSize bounds the parameter count of a single bulk INSERT.
const chunkSize = 500

// Truncate empties a staging table.
func Truncate(ctx context.Context, tx database.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

// InsertChunked bulk inserts rows into a staging table in chunks. Each row
// must carry one value per column, in column order.
func InsertChunked(ctx context.Context, tx database.Tx, table string, columns []string, rows [][]any) (int64, error) {
	var total int64
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto(table)
		sb.Cols(columns...)
		for _, row := range rows[start:end] {
			sb.Values(row...)
		}

		query, args := sb.Build()
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("failed to insert into %s: %w", table, err)
		}

		inserted, _ := result.RowsAffected()
		total += inserted
	}
	return total, nil
}

// Promote normalizes the JSON text columns of a staging table in place by
// round-tripping them through jsonb. A row carrying unparseable JSON fails
// the whole statement, which is the point: bad payloads must not reach the
// target table.
func Promote(ctx context.Context, tx database.Tx, table string, jsonColumns []string) (int64, error) {
	if len(jsonColumns) == 0 {
		return 0, nil
	}

	assignments := make([]string, len(jsonColumns))
	for i, col := range jsonColumns {
		assignments[i] = fmt.Sprintf("%s = (%s::jsonb)::text", col, col)
	}

	query := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(assignments, ", "))
	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to promote json columns in %s: %w", table, err)
	}

	updated, _ := result.RowsAffected()
	return updated, nil
}
