package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerStateTransitions(t *testing.T) {
	c := NewChecker()
	assert.Equal(t, "starting", c.State())
	assert.False(t, c.IsReady())

	c.SetReady()
	assert.Equal(t, "ready", c.State())
	assert.True(t, c.IsReady())

	c.SetDraining()
	assert.Equal(t, "draining", c.State())
	assert.False(t, c.IsReady())
}

func TestLivenessAlwaysOK(t *testing.T) {
	c := NewChecker()
	rr := httptest.NewRecorder()
	c.LivenessHandler()(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestReadinessBeforeReady(t *testing.T) {
	c := NewChecker()
	rr := httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "starting", resp["status"])
	assert.Empty(t, resp["lastPoll"])
}

func TestReadinessWhenReady(t *testing.T) {
	c := NewChecker()
	c.SetReady()
	pollAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.RecordPoll(pollAt)

	rr := httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "2025-06-01T12:00:00Z", resp["lastPoll"])
}

func TestReadinessWhileDraining(t *testing.T) {
	c := NewChecker()
	c.SetReady()
	c.SetDraining()

	rr := httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
