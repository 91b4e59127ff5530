package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"coreshare-backend/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates any missing tables and indexes. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.Info("Applying database schema")
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("Database schema is up to date")
	return nil
}
