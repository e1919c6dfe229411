package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heartbeatInterval = 30 * time.Second

func startMonitor(t *testing.T, r *Registry, clock *clockwork.FakeClock) *HeartbeatMonitor {
	t.Helper()
	m := NewHeartbeatMonitor(r, heartbeatInterval, clock)
	m.Start()
	t.Cleanup(m.Stop)
	// Wait for the monitor goroutine to create its ticker before advancing.
	clock.BlockUntilContext(context.Background(), 1) //nolint:errcheck // wait for the monitor ticker
	return m
}

func TestHeartbeat_EvictsAfterOneMissedCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(newFakeUserRepo(), clock)
	transport := newFakeTransport()
	c := r.Register(transport)

	startMonitor(t, r, clock)

	// First sweep probes the connection.
	clock.Advance(heartbeatInterval)
	require.True(t, waitFor(func() bool { return transport.countType(websocket.PingMessage) == 1 }))
	assert.Equal(t, 1, r.Len())

	// The client never pongs; the second sweep evicts it.
	clock.Advance(heartbeatInterval)
	require.True(t, waitFor(func() bool { return r.Len() == 0 }))
	assert.True(t, transport.isClosed())
	assert.Nil(t, r.Get(c.ID()))
}

func TestHeartbeat_RespondingConnectionSurvives(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(newFakeUserRepo(), clock)
	transport := newFakeTransport()
	c := r.Register(transport)
	t.Cleanup(func() { r.Remove(c.ID()) })

	startMonitor(t, r, clock)

	for cycle := 1; cycle <= 3; cycle++ {
		clock.Advance(heartbeatInterval)
		require.True(t, waitFor(func() bool { return transport.countType(websocket.PingMessage) == cycle }), "cycle %d", cycle)
		c.Pong()
	}

	assert.Equal(t, 1, r.Len())
	assert.False(t, transport.isClosed())
}

func TestHeartbeat_LateThenRecoveredPong(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(newFakeUserRepo(), clock)
	transport := newFakeTransport()
	c := r.Register(transport)
	t.Cleanup(func() { r.Remove(c.ID()) })

	startMonitor(t, r, clock)

	clock.Advance(heartbeatInterval)
	require.True(t, waitFor(func() bool { return transport.countType(websocket.PingMessage) == 1 }))

	// Pong lands just before the next sweep: no eviction.
	c.Pong()
	clock.Advance(heartbeatInterval)
	require.True(t, waitFor(func() bool { return transport.countType(websocket.PingMessage) == 2 }))
	assert.Equal(t, 1, r.Len())
}

func TestHeartbeat_StopHaltsProbing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(newFakeUserRepo(), clock)
	transport := newFakeTransport()
	c := r.Register(transport)
	t.Cleanup(func() { r.Remove(c.ID()) })

	m := NewHeartbeatMonitor(r, heartbeatInterval, clock)
	m.Start()
	clock.BlockUntilContext(context.Background(), 1) //nolint:errcheck // wait for the monitor ticker
	m.Stop()

	clock.Advance(2 * heartbeatInterval)
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, transport.countType(websocket.PingMessage))
	assert.Equal(t, 1, r.Len(), "stop must not close connections")
}
