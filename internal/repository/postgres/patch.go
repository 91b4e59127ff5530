package postgres

import (
	"context"
	"fmt"
	"strings"

	"coreshare-backend/internal/repository"
)

// setList accumulates "column = $n" assignments for a partial UPDATE.
// Column names only come from the static field mappings in each repository.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, val any) {
	s.args = append(s.args, val)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setList) addRaw(expr string) {
	s.cols = append(s.cols, expr)
}

func (s *setList) empty() bool {
	return len(s.cols) == 0
}

// build renders "UPDATE table SET ... WHERE id = $n" and returns the full argument list.
func (s *setList) build(table string, id int32) (string, []any) {
	args := append(s.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(s.cols, ", "), len(args))
	return query, args
}

// scanner is the common subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execOne runs a write that must touch exactly one row.
func execOne(ctx context.Context, db DBTX, query string, args ...any) error {
	n, err := execCount(ctx, db, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func execCount(ctx context.Context, db DBTX, query string, args ...any) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}
