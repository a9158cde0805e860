package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshstack/dstracker/pkg/tracker"
)

// fakeView is a canned RosterView.
type fakeView struct {
	players []tracker.PlayerStatus
	server  tracker.ServerInfo
}

func (f *fakeView) LiveView() []tracker.PlayerStatus { return f.players }
func (f *fakeView) Server() tracker.ServerInfo       { return f.server }

func newTestMux(view RosterView) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(view, nil).Register(mux)
	return mux
}

func TestHandleStatus_ReturnsRoster(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	view := &fakeView{
		players: []tracker.PlayerStatus{
			{IdentityID: "id-1", Name: "Alice", Classification: tracker.Active, SecondsActive: 300, SecondsAfk: 0, LastSeenAt: now},
			{IdentityID: "id-2", Name: "Bob", Classification: tracker.AFK, SecondsActive: 120, SecondsAfk: 600, LastSeenAt: now},
		},
		server: tracker.ServerInfo{Name: "DS Gaming #1", Map: "de_dust2", NumPlayers: 2, MaxPlayers: 32, PolledAt: now},
	}

	rec := httptest.NewRecorder()
	newTestMux(view).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/players/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Timestamp time.Time              `json:"timestamp"`
		Server    tracker.ServerInfo     `json:"server"`
		Count     int                    `json:"count"`
		Players   []tracker.PlayerStatus `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "DS Gaming #1", resp.Server.Name)
	require.Len(t, resp.Players, 2)
	assert.Equal(t, "Alice", resp.Players[0].Name)
	assert.Equal(t, tracker.AFK, resp.Players[1].Classification)
	assert.Equal(t, int64(600), resp.Players[1].SecondsAfk)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHandleStatus_EmptyRosterIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(&fakeView{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/players/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"players":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(&fakeView{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/players/status", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
