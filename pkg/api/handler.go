// Package api exposes the read-only status endpoint serving the tracker's
// live roster view.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mshstack/dstracker/pkg/tracker"
)

// RosterView is the read side of the presence store.
type RosterView interface {
	LiveView() []tracker.PlayerStatus
	Server() tracker.ServerInfo
}

// Handler serves the players status API.
type Handler struct {
	view   RosterView
	logger *slog.Logger
}

// NewHandler creates a status API handler backed by the given view.
func NewHandler(view RosterView, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{view: view, logger: logger}
}

// statusResponse is the body of GET /api/players/status.
type statusResponse struct {
	Timestamp time.Time              `json:"timestamp"`
	Server    tracker.ServerInfo     `json:"server"`
	Count     int                    `json:"count"`
	Players   []tracker.PlayerStatus `json:"players"`
}

// errorResponse is the body of any 5xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/players/status", h.handleStatus)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	players := h.view.LiveView()
	if players == nil {
		players = []tracker.PlayerStatus{}
	}

	resp := statusResponse{
		Timestamp: time.Now().UTC(),
		Server:    h.view.Server(),
		Count:     len(players),
		Players:   players,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("encoding status response", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
