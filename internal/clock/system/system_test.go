package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockDefaultsToUTC(t *testing.T) {
	t.Parallel()
	before := time.Now().Add(-time.Second)
	got := New(nil).Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.After(before))
}

func TestClockUsesZone(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("EST", -5*60*60)
	got := New(loc).Now()
	require.Equal(t, loc, got.Location())
	_, offset := got.Zone()
	assert.Equal(t, -5*60*60, offset)
}
