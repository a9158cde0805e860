// Package tracker implements the presence and AFK tracking engine. It
// ingests successive raw player snapshots from the game server, resolves
// each poll's records to stable identities, classifies players as active or
// AFK from fingerprint movement, and accumulates per-identity session
// durations between durable flushes.
package tracker

import (
	"time"
)

// Classification is a tracked player's current activity state.
type Classification string

const (
	// Active means the player's fingerprint moved recently.
	Active Classification = "active"
	// AFK means the fingerprint has been static beyond the idle threshold.
	AFK Classification = "afk"
)

// RawRecord is one player's row from a single server snapshot. Name is not
// guaranteed unique or stable; Raw holds the per-player fields the query
// protocol returned (score, connection time, ...).
type RawRecord struct {
	Name string
	Raw  map[string]any
}

// PlayerStatus is one entry of the live roster view.
type PlayerStatus struct {
	IdentityID     string         `json:"identity"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	SecondsActive  int64          `json:"secondsActive"`
	SecondsAfk     int64          `json:"secondsAfk"`
	LastSeenAt     time.Time      `json:"lastSeenAt"`
}

// ServerInfo is the most recent server snapshot metadata, as of the last
// applied poll.
type ServerInfo struct {
	Name       string    `json:"name"`
	Map        string    `json:"map"`
	NumPlayers int       `json:"numPlayers"`
	MaxPlayers int       `json:"maxPlayers"`
	PolledAt   time.Time `json:"polledAt"`
}
