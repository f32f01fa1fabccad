package timeparser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinBounds(t *testing.T) {
	assert.True(t, IsWithinBounds(0))
	assert.True(t, IsWithinBounds(MaxSafeMillis))
	assert.False(t, IsWithinBounds(-1))
	assert.False(t, IsWithinBounds(MaxSafeMillis+1))
}

func TestFromMillis(t *testing.T) {
	result, err := FromMillis(1767004245000)
	require.NoError(t, err)

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	assert.True(t, result.Equal(expected), "expected %v, got %v", expected, result)
}

func TestFromMillis_OutOfRange(t *testing.T) {
	_, err := FromMillis(-5)
	assert.Error(t, err)
}

func TestLoadZone_Known(t *testing.T) {
	loc, fallback, err := LoadZone("America/New_York", "Europe/Berlin")
	require.NoError(t, err)

	assert.False(t, fallback)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadZone_EmptyUsesDefault(t *testing.T) {
	loc, fallback, err := LoadZone("", "Europe/Berlin")
	require.NoError(t, err)

	assert.True(t, fallback)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadZone_UnknownUsesDefault(t *testing.T) {
	loc, fallback, err := LoadZone("Nowhere/Special", "Europe/Berlin")
	require.NoError(t, err)

	assert.True(t, fallback)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLocalize(t *testing.T) {
	loc, _, err := LoadZone("Europe/Berlin", "UTC")
	require.NoError(t, err)

	winter := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	local := Localize(winter, loc)

	assert.True(t, local.Equal(winter))
	assert.Equal(t, 11, local.Hour())
}
