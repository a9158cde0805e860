// Package storage defines the durable store contract for per-player session
// summaries. Implementations persist the accumulated presence data the
// tracker drains at each flush tick. Upserts carry absolute totals keyed by
// player identity, so replaying a batch (after a retried flush) is a no-op.
package storage

import (
	"context"
	"time"
)

// SessionSummary is one player's accumulated session state as of a flush.
// ActiveSeconds and AfkSeconds are absolute totals since first sight, not
// per-flush deltas, which is what makes Upsert idempotent.
type SessionSummary struct {
	// IdentityID is the stable logical player identity.
	IdentityID string

	// Name is the display name observed for the identity.
	Name string

	FirstSeenAt time.Time
	LastSeenAt  time.Time

	// Classification is the classification at drain time: "active" or "afk".
	Classification string

	ActiveSeconds int64
	AfkSeconds    int64

	// Departed marks an identity absent beyond the grace window. Its row is
	// final after this flush.
	Departed bool

	// FlushID identifies the flush batch that produced this summary. A
	// retried batch carries the same FlushID and identical totals.
	FlushID string

	FlushedAt time.Time
}

// Store persists session summaries.
type Store interface {
	// Upsert writes the given summaries, inserting new identities and
	// replacing existing rows. Calling it twice with the same batch must
	// leave the store in the same state as calling it once.
	Upsert(ctx context.Context, summaries []SessionSummary) error

	// Close releases underlying resources.
	Close() error
}
