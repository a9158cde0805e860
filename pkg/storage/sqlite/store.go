// Package sqlite provides SQLite storage for player session summaries.
// It uses modernc.org/sqlite, a pure Go driver, so single-box deployments
// need no CGO and no external database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/mshstack/dstracker/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_sessions (
	identity_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	first_seen_at TIMESTAMP NOT NULL,
	last_seen_at TIMESTAMP NOT NULL,
	classification TEXT NOT NULL,
	active_seconds INTEGER NOT NULL DEFAULT 0,
	afk_seconds INTEGER NOT NULL DEFAULT 0,
	departed INTEGER NOT NULL DEFAULT 0,
	last_flush_id TEXT NOT NULL,
	flushed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_player_sessions_last_seen
	ON player_sessions(last_seen_at);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and initializes
// the schema. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Upsert writes summaries inside a single transaction.
func (s *Store) Upsert(ctx context.Context, summaries []storage.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO player_sessions
		(identity_id, name, first_seen_at, last_seen_at, classification,
		 active_seconds, afk_seconds, departed, last_flush_id, flushed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity_id) DO UPDATE SET
			name = excluded.name,
			last_seen_at = excluded.last_seen_at,
			classification = excluded.classification,
			active_seconds = excluded.active_seconds,
			afk_seconds = excluded.afk_seconds,
			departed = excluded.departed,
			last_flush_id = excluded.last_flush_id,
			flushed_at = excluded.flushed_at
	`

	for _, sum := range summaries {
		_, err := tx.ExecContext(ctx, query,
			sum.IdentityID, sum.Name, sum.FirstSeenAt, sum.LastSeenAt,
			sum.Classification, sum.ActiveSeconds, sum.AfkSeconds, sum.Departed,
			sum.FlushID, sum.FlushedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting session %s: %w", sum.IdentityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert transaction: %w", err)
	}
	return nil
}

// Get retrieves the stored summary for an identity. Returns nil, nil if not
// found.
func (s *Store) Get(ctx context.Context, identityID string) (*storage.SessionSummary, error) {
	const query = `
		SELECT identity_id, name, first_seen_at, last_seen_at, classification,
		       active_seconds, afk_seconds, departed, last_flush_id, flushed_at
		FROM player_sessions
		WHERE identity_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, identityID)

	var sum storage.SessionSummary
	err := row.Scan(
		&sum.IdentityID, &sum.Name, &sum.FirstSeenAt, &sum.LastSeenAt,
		&sum.Classification, &sum.ActiveSeconds, &sum.AfkSeconds, &sum.Departed,
		&sum.FlushID, &sum.FlushedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // not-found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session %s: %w", identityID, err)
	}
	return &sum, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
