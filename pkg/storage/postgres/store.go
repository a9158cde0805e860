// Package postgres provides PostgreSQL storage for player session summaries.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mshstack/dstracker/pkg/storage"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// summaryColumns lists columns returned by session SELECT queries.
var summaryColumns = []string{
	"identity_id", "name", "first_seen_at", "last_seen_at",
	"classification", "active_seconds", "afk_seconds", "departed",
	"last_flush_id", "flushed_at",
}

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL summary store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes summaries inside a single transaction. Totals are absolute,
// so re-running the same batch rewrites identical values and the operation
// is idempotent.
func (s *Store) Upsert(ctx context.Context, summaries []storage.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sum := range summaries {
		query, args, err := psq.Insert("player_sessions").
			Columns(summaryColumns...).
			Values(
				sum.IdentityID, sum.Name, sum.FirstSeenAt, sum.LastSeenAt,
				sum.Classification, sum.ActiveSeconds, sum.AfkSeconds, sum.Departed,
				sum.FlushID, sum.FlushedAt,
			).
			Suffix(`ON CONFLICT (identity_id) DO UPDATE SET
				name = EXCLUDED.name,
				last_seen_at = EXCLUDED.last_seen_at,
				classification = EXCLUDED.classification,
				active_seconds = EXCLUDED.active_seconds,
				afk_seconds = EXCLUDED.afk_seconds,
				departed = EXCLUDED.departed,
				last_flush_id = EXCLUDED.last_flush_id,
				flushed_at = EXCLUDED.flushed_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("building upsert for %s: %w", sum.IdentityID, err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
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
	query, args, err := psq.Select(summaryColumns...).
		From("player_sessions").
		Where(sq.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)

	var sum storage.SessionSummary
	err = row.Scan(
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

// List returns all stored summaries ordered by last sighting, newest first.
func (s *Store) List(ctx context.Context) ([]storage.SessionSummary, error) {
	query, args, err := psq.Select(summaryColumns...).
		From("player_sessions").
		OrderBy("last_seen_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.SessionSummary
	for rows.Next() {
		var sum storage.SessionSummary
		if err := rows.Scan(
			&sum.IdentityID, &sum.Name, &sum.FirstSeenAt, &sum.LastSeenAt,
			&sum.Classification, &sum.ActiveSeconds, &sum.AfkSeconds, &sum.Departed,
			&sum.FlushID, &sum.FlushedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
