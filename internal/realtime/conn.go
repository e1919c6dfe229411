package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/martlabs/orderpulse/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	messageBufferSize = 16
)

// Transport is the subset of *websocket.Conn the registry needs. Tests
// substitute an in-memory implementation.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Channel identifies what a connection subscribed to.
type Channel string

const (
	ChannelOrder         Channel = "order"
	ChannelNotifications Channel = "notifications"
)

type subscription struct {
	channel Channel
	target  uuid.UUID
}

type outMessage struct {
	messageType int
	data        []byte
}

// Conn is one live client connection. It is created unauthenticated by
// Registry.Register and destroyed by Registry.Remove; subscriptions die with
// it. All writes to the transport happen on the writer goroutine.
type Conn struct {
	id        uuid.UUID
	transport Transport
	clock     clockwork.Clock
	openedAt  time.Time

	sendCh   chan outMessage
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.Mutex
	userID       uuid.UUID
	awaitingPong bool
	lastPongAt   time.Time
	subs         map[subscription]struct{}
}

func newConn(transport Transport, clock clockwork.Clock) *Conn {
	c := &Conn{
		id:        uuid.New(),
		transport: transport,
		clock:     clock,
		openedAt:  clock.Now(),
		sendCh:    make(chan outMessage, messageBufferSize),
		done:      make(chan struct{}),
		subs:      make(map[subscription]struct{}),
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *Conn) ID() uuid.UUID       { return c.id }
func (c *Conn) OpenedAt() time.Time { return c.openedAt }

// UserID returns the bound user and whether the connection is authenticated.
func (c *Conn) UserID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.userID != uuid.Nil
}

func (c *Conn) bind(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Send enqueues a text frame without blocking. A false return means the
// client's buffer is full (or the connection is closed) and the caller
// should treat it as dead.
func (c *Conn) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.sendCh <- outMessage{websocket.TextMessage, data}:
		return true
	default:
		return false
	}
}

func (c *Conn) sendPing() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.sendCh <- outMessage{websocket.PingMessage, nil}:
		return true
	default:
		return false
	}
}

// Pong records a heartbeat acknowledgment. Wired to the transport's pong
// handler by the connection handler.
func (c *Conn) Pong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awaitingPong = false
	c.lastPongAt = c.clock.Now()
}

// beginProbe marks the connection as awaiting a pong and reports whether the
// previous probe was never acknowledged.
func (c *Conn) beginProbe() (missed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	missed = c.awaitingPong
	c.awaitingPong = true
	return missed
}

// LastPongAt returns when the connection last acknowledged a probe; zero if
// it never has.
func (c *Conn) LastPongAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPongAt
}

func (c *Conn) Subscribe(channel Channel, target uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[subscription{channel, target}] = struct{}{}
}

func (c *Conn) Subscribed(channel Channel, target uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[subscription{channel, target}]
	return ok
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.sendCh:
			start := c.clock.Now()
			_ = c.transport.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.transport.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
			metrics.MessageSendDuration.Observe(c.clock.Since(start).Seconds())
		case <-c.done:
			return
		}
	}
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
	c.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing. The writer
// goroutine must have exited first to avoid concurrent transport writes.
func (c *Conn) stopGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.transport.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
		_ = c.transport.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.transport.Close()
	})
}
