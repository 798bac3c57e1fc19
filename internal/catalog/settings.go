package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/puntogamer/gamestore/internal/pricing"
)

// Settings is the store-wide configuration singleton: the pricing parameters
// plus the supplier feed location and the last successful sync timestamp
// (RFC3339, empty when the catalog has never synced).
type Settings struct {
	pricing.Settings
	SheetURL string
	LastSync string
}

// Default settings values, applied when the singleton row is created.
const (
	DefaultGlobalMargin = 30.0
	DefaultVATRate      = 21.0
)

// EnsureSettings inserts the singleton row with defaults if it is missing.
func (s *Store) EnsureSettings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_settings (id, global_margin, vat_rate, enable_vat_global, exchange_rate, sheet_url)
		VALUES (1, ?, ?, FALSE, 0, '')
		ON CONFLICT(id) DO NOTHING
	`, DefaultGlobalMargin, DefaultVATRate)
	if err != nil {
		return fmt.Errorf("insert default store_settings: %w", err)
	}
	return nil
}

// GetSettings loads the singleton.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	if err := s.EnsureSettings(ctx); err != nil {
		return Settings{}, err
	}

	var (
		cfg      Settings
		lastSync sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT global_margin, vat_rate, enable_vat_global, exchange_rate, sheet_url, last_sync
		FROM store_settings
		WHERE id = 1
	`).Scan(
		&cfg.GlobalMargin,
		&cfg.VATRate,
		&cfg.EnableVATGlobal,
		&cfg.ExchangeRate,
		&cfg.SheetURL,
		&lastSync,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, fmt.Errorf("store_settings singleton not found")
		}
		return Settings{}, fmt.Errorf("query store_settings: %w", err)
	}
	cfg.LastSync = lastSync.String
	return cfg, nil
}

// UpdateSettings overwrites the administrator-editable fields. LastSync is
// owned by TouchLastSync and not written here.
func (s *Store) UpdateSettings(ctx context.Context, cfg Settings) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE store_settings
		SET
			global_margin = ?,
			vat_rate = ?,
			enable_vat_global = ?,
			exchange_rate = ?,
			sheet_url = ?,
			updated_at = ?
		WHERE id = 1
	`,
		cfg.GlobalMargin,
		cfg.VATRate,
		cfg.EnableVATGlobal,
		cfg.ExchangeRate,
		cfg.SheetURL,
		nowText(),
	)
	if err != nil {
		return fmt.Errorf("update store_settings: %w", err)
	}
	return nil
}

// TouchLastSync records the moment of a successful reconciliation.
func (s *Store) TouchLastSync(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE store_settings
		SET last_sync = ?, updated_at = ?
		WHERE id = 1
	`, at.UTC().Format(time.RFC3339), nowText())
	if err != nil {
		return fmt.Errorf("update last_sync: %w", err)
	}
	return nil
}

// SyncRun is one row of the reconciliation audit log.
type SyncRun struct {
	ID         int64
	StartedAt  string
	FinishedAt string
	Status     string
	Matched    int
	Updated    int
	OutOfStock int
	Missing    int
	Failed     int
	Error      string
}

// Sync run terminal states.
const (
	SyncStatusOK     = "ok"
	SyncStatusFailed = "failed"
)

// RecordSyncRun appends one audit row.
func (s *Store) RecordSyncRun(ctx context.Context, run SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (started_at, finished_at, status, matched, updated, out_of_stock, missing, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt, run.FinishedAt, run.Status, run.Matched, run.Updated, run.OutOfStock, run.Missing, run.Failed, run.Error)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first.
func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, matched, updated, out_of_stock, missing, failed, COALESCE(error, '')
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]SyncRun, 0)
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Matched, &run.Updated, &run.OutOfStock, &run.Missing, &run.Failed, &run.Error); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
