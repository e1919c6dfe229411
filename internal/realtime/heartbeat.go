package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/martlabs/orderpulse/internal/metrics"
)

// HeartbeatMonitor probes every open connection on a fixed period and evicts
// any that failed to acknowledge the previous probe. A connection therefore
// survives at most one full missed cycle before eviction. Eviction is the
// expected outcome of network loss, not an error.
type HeartbeatMonitor struct {
	registry *Registry
	interval time.Duration
	clock    clockwork.Clock

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHeartbeatMonitor(registry *Registry, interval time.Duration, clock clockwork.Clock) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: registry,
		interval: interval,
		clock:    clock,
		done:     make(chan struct{}),
	}
}

func (m *HeartbeatMonitor) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop halts probing. It does not close connections; that is the caller's
// shutdown path via Registry.CloseAll.
func (m *HeartbeatMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *HeartbeatMonitor) run() {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.sweep()
		case <-m.done:
			return
		}
	}
}

func (m *HeartbeatMonitor) sweep() {
	evicted := 0
	for _, c := range m.registry.snapshot() {
		if c.beginProbe() {
			// Previous probe was never acknowledged.
			slog.Info("evicting unresponsive connection", "connection_id", c.ID().String(), "last_pong_at", c.LastPongAt())
			metrics.HeartbeatEvictionsTotal.Inc()
			m.registry.Remove(c.ID())
			evicted++
			continue
		}
		if !c.sendPing() {
			// Send buffer full: the writer is stalled, treat as dead.
			slog.Info("evicting connection with stalled writer", "connection_id", c.ID().String())
			metrics.HeartbeatEvictionsTotal.Inc()
			m.registry.Remove(c.ID())
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("heartbeat sweep complete", "evicted", evicted, "remaining", m.registry.Len())
	}
}
