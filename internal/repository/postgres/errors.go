package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"coreshare-backend/internal/repository"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNotNullViolation    = "23502"
)

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation, pqCheckViolation, pqNotNullViolation:
			return fmt.Errorf("%w: %s", repository.ErrIntegrity, pqErr.Message)
		}
	}
	return err
}
