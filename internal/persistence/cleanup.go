package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

//goland:noinspection SqlWithoutWhere
var clearDatabaseStatements = []string{
	`DELETE FROM scans;`,
}

func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear database tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range clearDatabaseStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear database tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear database tx: %w", err)
	}

	return nil
}

// Cleanup drops journal entries older than retentionDays. Zero keeps everything.
func Cleanup(ctx context.Context, logger *slog.Logger, repo *ScanRepo, retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted, err := repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 && logger != nil {
		logger.Info("scan journal cleaned up", "deleted", deleted, "cutoff", cutoff)
	}

	return nil
}
