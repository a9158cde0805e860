package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())
}

func TestDurationUnmarshalCompound(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, 90*time.Minute, d.Std())
}

func TestDurationUnmarshalBareInteger(t *testing.T) {
	// A bare integer is treated as seconds.
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`60`), &d))
	assert.Equal(t, time.Minute, d.Std())
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, yaml.Unmarshal([]byte(`"not a duration"`), &d))
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Duration(5 * time.Minute))
	require.NoError(t, err)

	var d Duration
	require.NoError(t, yaml.Unmarshal(out, &d))
	assert.Equal(t, 5*time.Minute, d.Std())
}

func TestDurationString(t *testing.T) {
	assert.Equal(t, "5m0s", Duration(5*time.Minute).String())
}
