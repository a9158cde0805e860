// Package poller runs the two scheduled loops of the tracker: the poll loop
// that queries the game server and applies snapshots to the presence store,
// and the slower flush loop that drains accumulated session state into the
// durable store. Polls are applied from a single goroutine and every store
// access goes through the tracker's mutex, so flushes and live-view reads
// never observe a half-applied poll.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mshstack/dstracker/pkg/gamequery"
	"github.com/mshstack/dstracker/pkg/health"
	"github.com/mshstack/dstracker/pkg/storage"
	"github.com/mshstack/dstracker/pkg/tracker"
)

// SnapshotSource produces a server snapshot or fails after bounded retries.
type SnapshotSource interface {
	Query(ctx context.Context) (*gamequery.Snapshot, error)
}

// Relay receives raw snapshots and down markers, best-effort.
type Relay interface {
	Send(ctx context.Context, snap *gamequery.Snapshot)
	SendDown(ctx context.Context)
}

// Config configures the poller's cadence.
type Config struct {
	// PollInterval is the game-server query cadence.
	PollInterval time.Duration

	// FlushInterval is the durable-commit cadence. Must be longer than
	// PollInterval.
	FlushInterval time.Duration

	// FlushTimeout bounds one durable-store commit attempt.
	FlushTimeout time.Duration
}

// Poller owns the poll and flush timers.
type Poller struct {
	cfg     Config
	source  SnapshotSource
	tracker *tracker.Store
	store   storage.Store
	relay   Relay
	checker *health.Checker
	logger  *slog.Logger

	flushing atomic.Bool
	wg       sync.WaitGroup
}

// New creates a poller. relay and checker may be nil.
func New(cfg Config, source SnapshotSource, trk *tracker.Store, store storage.Store, relay Relay, checker *health.Checker, logger *slog.Logger) *Poller {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		tracker: trk,
		store:   store,
		relay:   relay,
		checker: checker,
		logger:  logger,
	}
}

// Run polls immediately, then services both tickers until ctx is canceled.
// On shutdown it attempts one final flush so accumulated state is not lost.
func (p *Poller) Run(ctx context.Context) error {
	p.guard("poll", func() { p.poll(ctx) })

	pollTicker := time.NewTicker(p.cfg.PollInterval)
	defer pollTicker.Stop()
	flushTicker := time.NewTicker(p.cfg.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdownFlush()
			p.wg.Wait()
			return ctx.Err()
		case <-pollTicker.C:
			p.guard("poll", func() { p.poll(ctx) })
		case <-flushTicker.C:
			p.guard("flush", func() { p.flushTick(ctx) })
		}
	}
}

// poll queries the server once and applies the snapshot. A failed query
// skips the cycle without touching tracker state and reports the outage to
// the legacy relay only.
func (p *Poller) poll(ctx context.Context) {
	snap, err := p.source.Query(ctx)
	if err != nil {
		p.logger.Warn("snapshot source unavailable, skipping poll", "error", err)
		if p.relay != nil {
			p.detach(func(relayCtx context.Context) { p.relay.SendDown(relayCtx) })
		}
		return
	}

	records := make([]tracker.RawRecord, 0, len(snap.Players))
	for _, pl := range snap.Players {
		records = append(records, tracker.RawRecord{Name: pl.Name, Raw: pl.Raw})
	}

	p.tracker.ApplyPoll(snap.QueriedAt, tracker.ServerInfo{
		Name:       snap.Name,
		Map:        snap.Map,
		NumPlayers: snap.NumPlayers,
		MaxPlayers: snap.MaxPlayers,
	}, records)

	if p.checker != nil {
		p.checker.RecordPoll(snap.QueriedAt)
	}
	p.logger.Info("applied poll", "players", snap.NumPlayers, "map", snap.Map)

	if p.relay != nil {
		p.detach(func(relayCtx context.Context) { p.relay.Send(relayCtx, snap) })
	}
}

// flushTick starts a flush unless one is still in flight, in which case the
// tick is skipped. The commit runs in its own goroutine so a slow durable
// store never stalls polling.
func (p *Poller) flushTick(ctx context.Context) {
	if !p.flushing.CompareAndSwap(false, true) {
		p.logger.Warn("flush still in flight, skipping tick")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.flushing.Store(false)
		p.guard("flush commit", func() { p.flush(ctx) })
	}()
}

// flush drains the tracker and commits the batch. On failure accumulators
// are preserved for the next tick; durability is delayed, never dropped.
func (p *Poller) flush(ctx context.Context) {
	batch := p.tracker.DrainForFlush(time.Now())
	if batch == nil {
		return
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FlushTimeout)
	defer cancel()

	err := p.store.Upsert(commitCtx, batch.Entries)
	p.tracker.CommitFlushResult(batch, err == nil)

	if err != nil {
		p.logger.Error("flush commit failed, will retry next tick",
			"flush_id", batch.ID, "sessions", len(batch.Entries), "error", err)
		return
	}
	p.logger.Info("flushed session state", "flush_id", batch.ID, "sessions", len(batch.Entries))
}

// shutdownFlush runs one last flush synchronously during shutdown.
func (p *Poller) shutdownFlush() {
	if !p.flushing.CompareAndSwap(false, true) {
		return
	}
	defer p.flushing.Store(false)
	p.guard("shutdown flush", func() { p.flush(context.Background()) })
}

// detach runs fn in a fire-and-forget goroutine with its own lifetime, so
// relay calls survive poll-cycle boundaries but not process shutdown waits.
func (p *Poller) detach(fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

// guard isolates a loop step so an unexpected panic is logged and the loop
// continues.
func (p *Poller) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered from panic in scheduled task", "task", name, "panic", r)
		}
	}()
	fn()
}
