package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mshstack/dstracker/pkg/storage"
)

// Config configures the presence store.
type Config struct {
	// AFKThreshold is how long a fingerprint may stay unchanged before a
	// player is classified AFK.
	AFKThreshold time.Duration

	// GracePolls is how many consecutive polls a player may be absent and
	// still resolve to the same identity on return.
	GracePolls int

	// VolatileFields are raw field names excluded from the fingerprint.
	// Defaults to time and ping.
	VolatileFields []string
}

// session is the mutable per-identity state. Owned exclusively by the Store
// and only touched under its mutex.
type session struct {
	id   string
	name string

	firstSeenAt    time.Time
	lastSeenAt     time.Time
	lastActivityAt time.Time
	lastFlushedAt  time.Time

	classification Classification
	fingerprint    string

	// Accumulated durations since the last successful flush.
	activeAcc time.Duration
	afkAcc    time.Duration

	// Totals committed by earlier flushes. activeAcc/afkAcc on top of these
	// give the absolute session totals.
	flushedActive time.Duration
	flushedAfk    time.Duration

	missedPolls int
	departed    bool
	everFlushed bool
	inFlight    bool
}

func (s *session) totalActive() time.Duration { return s.flushedActive + s.activeAcc }
func (s *session) totalAfk() time.Duration    { return s.flushedAfk + s.afkAcc }

// needsFlush reports whether the session has anything a flush must commit:
// new accrual, a first row that was never written, or a terminal row for a
// departed identity.
func (s *session) needsFlush() bool {
	return s.activeAcc > 0 || s.afkAcc > 0 || !s.everFlushed || s.departed
}

// drained records how much of a session's accumulators a flush batch took,
// so a successful commit subtracts exactly that and keeps accrual that
// happened while the flush was in flight.
type drained struct {
	active   time.Duration
	afk      time.Duration
	departed bool
}

// FlushBatch is an immutable snapshot of the sessions due for commit at a
// flush tick. It is owned by the flush scheduler for the duration of the
// commit attempt.
type FlushBatch struct {
	ID      string
	At      time.Time
	Entries []storage.SessionSummary

	drained map[string]drained
}

// Store is the presence state store: the single shared mutable state of the
// tracker. All access goes through its exported methods, each of which takes
// the mutex, so a live-view read never observes a half-applied poll and a
// drain never interleaves with an application.
type Store struct {
	mu sync.Mutex

	cfg        Config
	classifier Classifier
	volatile   map[string]struct{}

	sessions map[string]*session
	server   ServerInfo
	flushing bool
}

// NewStore creates a presence store with the given configuration.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:        cfg,
		classifier: Classifier{AFKThreshold: cfg.AFKThreshold},
		volatile:   volatileSet(cfg.VolatileFields),
		sessions:   make(map[string]*session),
	}
}

// ApplyPoll ingests one snapshot's player records at the given poll time.
// Present players are resolved to identities and updated; players absent
// beyond the grace window transition to departed. The poll is applied fully
// or not at all; callers skip this entirely when the snapshot source failed.
func (t *Store) ApplyPoll(pollAt time.Time, info ServerInfo, records []RawRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	known := make([]candidate, 0, len(t.sessions))
	for _, s := range t.sessions {
		if s.departed {
			continue
		}
		known = append(known, candidate{id: s.id, name: s.name, lastSeen: s.lastSeenAt})
	}

	assignments := resolve(records, known)

	present := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		present[a.id] = true
		if a.minted {
			t.sessions[a.id] = &session{
				id:             a.id,
				name:           a.record.Name,
				firstSeenAt:    pollAt,
				lastSeenAt:     pollAt,
				lastActivityAt: pollAt,
				classification: Active,
				fingerprint:    fingerprint(a.record.Raw, t.volatile),
			}
			continue
		}
		t.updateSession(t.sessions[a.id], pollAt, a.record)
	}

	for _, s := range t.sessions {
		if s.departed || present[s.id] {
			continue
		}
		s.missedPolls++
		if s.missedPolls > t.cfg.GracePolls {
			s.departed = true
		}
	}

	info.PolledAt = pollAt
	t.server = info
}

// updateSession advances one present session by a poll. The inter-poll delta
// is attributed to whichever classification the interval resolved to, which
// keeps activeAcc+afkAcc equal to lastSeen-firstSeen between flushes.
func (t *Store) updateSession(s *session, pollAt time.Time, rec RawRecord) {
	fp := fingerprint(rec.Raw, t.volatile)
	idle := pollAt.Sub(s.lastActivityAt)
	class, moved := t.classifier.Classify(s.fingerprint, fp, idle, s.classification)

	delta := pollAt.Sub(s.lastSeenAt)
	if delta > 0 {
		if class == AFK {
			s.afkAcc += delta
		} else {
			s.activeAcc += delta
		}
	}

	if moved {
		s.lastActivityAt = pollAt
	}
	s.classification = class
	s.fingerprint = fp
	s.name = rec.Name
	s.lastSeenAt = pollAt
	s.missedPolls = 0
}

// LiveView returns the current roster: every identity not departed, as of
// the most recently applied poll, sorted by name.
func (t *Store) LiveView() []PlayerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PlayerStatus, 0, len(t.sessions))
	for _, s := range t.sessions {
		if s.departed {
			continue
		}
		out = append(out, PlayerStatus{
			IdentityID:     s.id,
			Name:           s.name,
			Classification: s.classification,
			SecondsActive:  int64(s.totalActive().Seconds()),
			SecondsAfk:     int64(s.totalAfk().Seconds()),
			LastSeenAt:     s.lastSeenAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out
}

// Server returns the metadata of the last applied poll.
func (t *Store) Server() ServerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server
}

// DrainForFlush snapshots every session needing commit and marks it flush in
// flight. Returns nil when a flush is already in flight or nothing needs
// committing. Summaries carry absolute totals so a retried batch rewrites
// identical values.
func (t *Store) DrainForFlush(now time.Time) *FlushBatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.flushing {
		return nil
	}

	batch := &FlushBatch{
		ID:      uuid.NewString(),
		At:      now,
		drained: make(map[string]drained),
	}

	for _, s := range t.sessions {
		if !s.needsFlush() {
			continue
		}
		s.inFlight = true
		batch.drained[s.id] = drained{active: s.activeAcc, afk: s.afkAcc, departed: s.departed}
		batch.Entries = append(batch.Entries, storage.SessionSummary{
			IdentityID:     s.id,
			Name:           s.name,
			FirstSeenAt:    s.firstSeenAt,
			LastSeenAt:     s.lastSeenAt,
			Classification: string(s.classification),
			ActiveSeconds:  int64(s.totalActive().Seconds()),
			AfkSeconds:     int64(s.totalAfk().Seconds()),
			Departed:       s.departed,
			FlushID:        batch.ID,
			FlushedAt:      now,
		})
	}

	if len(batch.Entries) == 0 {
		return nil
	}

	sort.Slice(batch.Entries, func(i, j int) bool {
		return batch.Entries[i].IdentityID < batch.Entries[j].IdentityID
	})

	t.flushing = true
	return batch
}

// CommitFlushResult finalizes a drained batch. On success the drained
// amounts move into the flushed totals (accrual since the drain is kept) and
// identities that were departed at drain time are removed. On failure
// accumulators stay untouched, so the next flush retries the same data plus
// whatever accrued since.
func (t *Store) CommitFlushResult(batch *FlushBatch, succeeded bool) {
	if batch == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, d := range batch.drained {
		s, ok := t.sessions[id]
		if !ok {
			continue
		}
		s.inFlight = false
		if !succeeded {
			continue
		}
		if d.departed {
			delete(t.sessions, id)
			continue
		}
		s.flushedActive += d.active
		s.flushedAfk += d.afk
		s.activeAcc -= d.active
		s.afkAcc -= d.afk
		s.lastFlushedAt = batch.At
		s.everFlushed = true
	}

	t.flushing = false
}
