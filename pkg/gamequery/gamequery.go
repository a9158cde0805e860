// Package gamequery implements the snapshot source: a client for the A2S
// query protocol spoken by GoldSource and Source game servers. A query
// returns the server's name, map and per-player rows (name, score,
// connection time), or fails after a bounded number of attempts.
package gamequery

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Player is one raw per-poll player row. Raw carries the protocol fields
// keyed the way the legacy aggregator expects them.
type Player struct {
	Name string         `json:"name"`
	Raw  map[string]any `json:"raw"`
}

// Snapshot is the result of one successful server query.
type Snapshot struct {
	Name       string
	Map        string
	Players    []Player
	NumPlayers int
	MaxPlayers int
	QueriedAt  time.Time
}

// Config configures the query client.
type Config struct {
	Host string
	Port int

	// MaxAttempts is how many times a query is tried before giving up.
	MaxAttempts int

	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// Client queries a single game server.
type Client struct {
	cfg  Config
	addr string
}

// New creates a query client for the configured server.
func New(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

// Addr returns the host:port the client queries.
func (c *Client) Addr() string {
	return c.addr
}

// Query polls the server for its info and player list. Each attempt gets its
// own socket and deadline; the last attempt's error is returned when all of
// them fail.
func (c *Client) Query(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := c.queryOnce(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("querying %s after %d attempts: %w", c.addr, c.cfg.MaxAttempts, lastErr)
}

func (c *Client) queryOnce(ctx context.Context) (*Snapshot, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.cfg.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	info, err := queryInfo(conn)
	if err != nil {
		return nil, err
	}

	players, err := queryPlayers(conn)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Name:       info.name,
		Map:        info.mapName,
		Players:    players,
		NumPlayers: len(players),
		MaxPlayers: info.maxPlayers,
		QueriedAt:  time.Now(),
	}, nil
}
