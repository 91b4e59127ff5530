package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	repository.Repositories
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Repositories: newRepositories(db),
	}
}

func newRepositories(conn DBTX) repository.Repositories {
	return repository.Repositories{
		Users:         NewUserRepository(conn),
		Gpus:          NewGpuRepository(conn),
		Rentals:       NewRentalRepository(conn),
		Payments:      NewPaymentRepository(conn),
		Reviews:       NewReviewRepository(conn),
		Notifications: NewNotificationRepository(conn),
	}
}

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Transaction commit failed", "error", err)
		return fmt.Errorf("commit transaction: %w", translateError(err))
	}
	return nil
}
