package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimits_GlobalCap(t *testing.T) {
	limits := NewConnectionLimits(2, 10, 1000, 1000)

	for i := range 2 {
		ok, _ := limits.Acquire(fmt.Sprintf("10.0.0.%d", i))
		require.True(t, ok)
	}

	ok, reason := limits.Acquire("10.0.0.99")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.0")
	ok, _ = limits.Acquire("10.0.0.99")
	assert.True(t, ok)
}

func TestConnectionLimits_PerIPCap(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// Another IP is unaffected.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	// The per-IP rejection must have rolled its global slot back:
	// 2 for .1, 1 for .2, none leaked.
	assert.Equal(t, int64(3), limits.global.current.Load())
}

func TestConnectionLimits_RateLimit(t *testing.T) {
	limits := NewConnectionLimits(1000, 1000, 1, 2)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}

func TestConnectionLimits_ReleaseReclaimsIPEntry(t *testing.T) {
	limits := NewConnectionLimits(100, 5, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	limits.Release("10.0.0.1")

	limits.perIP.mu.Lock()
	defer limits.perIP.mu.Unlock()
	assert.Empty(t, limits.perIP.ips)
}
