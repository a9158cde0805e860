package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshstack/dstracker/pkg/gamequery"
)

const testKey = "test-relay-key"

func testSnapshot() *gamequery.Snapshot {
	return &gamequery.Snapshot{
		Name: "DS Gaming #1",
		Map:  "de_dust2",
		Players: []gamequery.Player{
			{Name: "Alice", Raw: map[string]any{"score": int64(10), "time": 120.5}},
			{Name: "Bob", Raw: map[string]any{"score": int64(3), "time": 60.0}},
		},
		NumPlayers: 2,
		MaxPlayers: 32,
		QueriedAt:  time.Now(),
	}
}

func TestSend_PostsLegacyPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("User-Agent"), "dstracker-poller")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Key: testKey}, nil)
	c.Send(context.Background(), testSnapshot())

	assert.Equal(t, testKey, got["key"])
	assert.Equal(t, "DS Gaming #1", got["name"])
	assert.Equal(t, "de_dust2", got["map"])
	assert.Equal(t, float64(2), got["num_players"])
	assert.Equal(t, float64(32), got["max_players"])

	players, ok := got["players"].([]any)
	require.True(t, ok)
	require.Len(t, players, 2)
	first, ok := players[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", first["name"])
	raw, ok := first["raw"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(10), raw["score"])
}

func TestSendDown_PostsDownMarker(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Key: testKey}, nil)
	c.SendDown(context.Background())

	assert.Equal(t, map[string]any{"key": testKey, "error": "down"}, got)
}

func TestSend_SwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Key: testKey}, nil)
	// Must not panic or propagate anything.
	c.Send(context.Background(), testSnapshot())
	c.SendDown(context.Background())
}

func TestSend_SwallowsConnectionErrors(t *testing.T) {
	c := New(Config{URL: "http://127.0.0.1:1", Key: testKey, Timeout: 100 * time.Millisecond}, nil)
	c.Send(context.Background(), testSnapshot())
	c.SendDown(context.Background())
}

func TestSend_EmptyPlayersMarshalsAsArray(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Key: testKey}, nil)
	c.Send(context.Background(), &gamequery.Snapshot{Name: "empty", Map: "de_aztec"})

	assert.Contains(t, string(raw), `"players":[]`)
}
