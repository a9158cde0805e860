package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_IgnoresVolatileFields(t *testing.T) {
	volatile := volatileSet(nil)

	a := fingerprint(map[string]any{"score": int64(10), "time": 100.5}, volatile)
	b := fingerprint(map[string]any{"score": int64(10), "time": 160.5}, volatile)
	assert.Equal(t, a, b, "connection time must not register as activity")

	c := fingerprint(map[string]any{"score": int64(11), "time": 160.5}, volatile)
	assert.NotEqual(t, a, c, "score change must register as activity")
}

func TestFingerprint_DeterministicKeyOrder(t *testing.T) {
	volatile := volatileSet(nil)

	a := fingerprint(map[string]any{"score": int64(3), "deaths": int64(1)}, volatile)
	b := fingerprint(map[string]any{"deaths": int64(1), "score": int64(3)}, volatile)
	assert.Equal(t, a, b)
}

func TestFingerprint_Empty(t *testing.T) {
	assert.Equal(t, "", fingerprint(nil, volatileSet(nil)))
}

func TestVolatileSet_CustomFields(t *testing.T) {
	volatile := volatileSet([]string{"frags"})

	a := fingerprint(map[string]any{"frags": int64(1), "time": 10.0}, volatile)
	b := fingerprint(map[string]any{"frags": int64(2), "time": 20.0}, volatile)
	assert.NotEqual(t, a, b, "custom volatile list replaces the defaults, so time counts")

	c := fingerprint(map[string]any{"frags": int64(9), "time": 10.0}, volatile)
	assert.Equal(t, a, c)
}
