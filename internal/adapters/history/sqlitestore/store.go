// Package sqlitestore keeps a local record of sync runs and a cache of
// recently submitted dedup keys. The cache only pre-seeds duplicate detection;
// the ledger-side key listing remains authoritative.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	_ "modernc.org/sqlite"
)

// keyRetention is how long cached dedup keys are kept before pruning. Three
// times the maximum sync window is plenty for any realistic lookback.
const keyRetention = 93 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status TEXT NOT NULL,
	accounts_processed INTEGER NOT NULL,
	total_new INTEGER NOT NULL,
	total_skipped INTEGER NOT NULL,
	tokens_rotated INTEGER NOT NULL,
	credentials_persisted INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dedup_keys (
	account_ref TEXT NOT NULL,
	txn_date TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (account_ref, dedup_key)
);

CREATE INDEX IF NOT EXISTS idx_dedup_keys_window ON dedup_keys(account_ref, txn_date);
`

// Store is a SQLite-backed RunHistory.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

var _ clients.RunHistory = (*Store)(nil)

// RecordRun stores the aggregate outcome of one run.
func (s *Store) RecordRun(ctx context.Context, run domain.RunResult) error {
	persisted := 0
	if run.CredentialsPersisted {
		persisted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (run_id, started_at, finished_at, status, accounts_processed, total_new, total_skipped, tokens_rotated, credentials_persisted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		string(run.Status),
		run.AccountsProcessed,
		run.TotalNew,
		run.TotalSkipped,
		run.TokensRotated,
		persisted,
	)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

// RecentKeys returns cached dedup keys for the account within the window.
func (s *Store) RecentKeys(ctx context.Context, accountRef string, window domain.Window) ([]domain.DedupKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dedup_key FROM dedup_keys
		WHERE account_ref = ? AND txn_date >= ? AND txn_date <= ?`,
		accountRef,
		window.Start.Format(domain.LedgerDateLayout),
		window.End.Format(domain.LedgerDateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cached keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.DedupKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning cached key: %w", err)
		}
		keys = append(keys, domain.DedupKey(key))
	}
	return keys, rows.Err()
}

// SaveKeys caches keys submitted this run and prunes entries past retention.
func (s *Store) SaveKeys(ctx context.Context, accountRef string, records []clients.KeyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting key-cache transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO dedup_keys (account_ref, txn_date, dedup_key, created_at)
			VALUES (?, ?, ?, ?)`,
			accountRef,
			rec.Date.Format(domain.LedgerDateLayout),
			string(rec.Key),
			now,
		); err != nil {
			return fmt.Errorf("caching dedup key: %w", err)
		}
	}

	cutoff := time.Now().Add(-keyRetention).UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `DELETE FROM dedup_keys WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("pruning dedup keys: %w", err)
	}

	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
