// Package relay forwards raw server snapshots to the legacy aggregation
// endpoint. Delivery is strictly best-effort: the caller fires a relay in a
// detached goroutine and a failed POST never affects tracker state or delays
// the next poll.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mshstack/dstracker/pkg/gamequery"
)

const userAgent = "dstracker-poller/1.0"

// Config configures the relay client.
type Config struct {
	// URL is the legacy aggregator endpoint.
	URL string

	// Key is the shared secret included in every payload.
	Key string

	// Timeout bounds a snapshot POST. The down marker uses DownTimeout,
	// which is shorter since it is sent on an already-degraded cycle.
	Timeout     time.Duration
	DownTimeout time.Duration
}

// Client posts snapshots to the legacy endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	down   *http.Client
	logger *slog.Logger
}

// snapshotPayload is the wire shape the legacy aggregator expects.
type snapshotPayload struct {
	Key        string             `json:"key"`
	Name       string             `json:"name"`
	Map        string             `json:"map"`
	Players    []gamequery.Player `json:"players"`
	NumPlayers int                `json:"num_players"`
	MaxPlayers int                `json:"max_players"`
}

// downPayload signals the aggregator that the game server is unreachable.
type downPayload struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// New creates a relay client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DownTimeout <= 0 {
		cfg.DownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		down:   &http.Client{Timeout: cfg.DownTimeout},
		logger: logger,
	}
}

// Send posts a snapshot. Errors are logged and swallowed.
func (c *Client) Send(ctx context.Context, snap *gamequery.Snapshot) {
	payload := snapshotPayload{
		Key:        c.cfg.Key,
		Name:       snap.Name,
		Map:        snap.Map,
		Players:    snap.Players,
		NumPlayers: snap.NumPlayers,
		MaxPlayers: snap.MaxPlayers,
	}
	if payload.Players == nil {
		payload.Players = []gamequery.Player{}
	}

	if err := c.post(ctx, c.client, payload); err != nil {
		c.logger.Warn("relay send failed", "url", c.cfg.URL, "error", err)
		return
	}
	c.logger.Debug("relayed snapshot", "players", snap.NumPlayers)
}

// SendDown posts the down marker. Errors are logged and swallowed.
func (c *Client) SendDown(ctx context.Context) {
	if err := c.post(ctx, c.down, downPayload{Key: c.cfg.Key, Error: "down"}); err != nil {
		c.logger.Warn("relay down marker failed", "url", c.cfg.URL, "error", err)
	}
}

func (c *Client) post(ctx context.Context, client *http.Client, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to aggregator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("aggregator returned %d", resp.StatusCode)
	}
	return nil
}
