package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skobkin/wedgego/internal/connectors"
)

const DefaultListLimit = 50

// ScanEntry is a journaled scan.
type ScanEntry struct {
	ID int64 `json:"id"`
	connectors.ScanRecord
}

// ScanRepo stores accepted scans in SQLite.
type ScanRepo struct {
	db *sql.DB
}

func NewScanRepo(db *sql.DB) *ScanRepo {
	return &ScanRepo{db: db}
}

func (r *ScanRepo) Insert(ctx context.Context, rec connectors.ScanRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO scans(barcode, symbology, source, mode, scanned_at)
		VALUES(?, ?, ?, ?, ?)
	`, rec.Barcode, rec.Symbology, rec.Source, string(rec.Mode), scannedAtMillis(rec.At))
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read scan id: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit scans, newest first.
func (r *ScanRepo) ListRecent(ctx context.Context, limit int) ([]ScanEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, barcode, symbology, source, mode, scanned_at
		FROM scans
		ORDER BY scanned_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	out := make([]ScanEntry, 0, limit)
	for rows.Next() {
		var (
			entry     ScanEntry
			mode      string
			scannedMs int64
		)
		if err := rows.Scan(&entry.ID, &entry.Barcode, &entry.Symbology, &entry.Source, &mode, &scannedMs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entry.Mode = connectors.ScanMode(mode)
		entry.At = scannedAtTime(scannedMs)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}

	return out, nil
}

func (r *ScanRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE scanned_at < ?`, scannedAtMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old scans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted scans: %w", err)
	}

	return n, nil
}

func (r *ScanRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}

	return n, nil
}

// scannedAtMillis stores zero times as 0 so they sort before every real scan.
func scannedAtMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func scannedAtTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}
