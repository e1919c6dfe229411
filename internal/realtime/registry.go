package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/metrics"
)

// Registry holds the live set of connections, keyed by connection ID and,
// once authenticated, by owner user. A user may hold any number of
// concurrent connections (multi-device). The internal maps are never handed
// out; every accessor copies.
type Registry struct {
	users domain.UserRepository
	clock clockwork.Clock

	mu     sync.RWMutex
	conns  map[uuid.UUID]*Conn
	byUser map[uuid.UUID]map[uuid.UUID]*Conn
}

func NewRegistry(users domain.UserRepository, clock clockwork.Clock) *Registry {
	return &Registry{
		users:  users,
		clock:  clock,
		conns:  make(map[uuid.UUID]*Conn),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*Conn),
	}
}

// Register allocates a new unauthenticated connection for the transport.
func (r *Registry) Register(transport Transport) *Conn {
	c := newConn(transport, r.clock)

	r.mu.Lock()
	r.conns[c.id] = c
	total := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(total))
	slog.Debug("connection registered", "connection_id", c.id.String(), "total_connections", total)
	return c
}

// Authenticate binds a connection to a user after validating the user
// exists. Binding the same connection twice is a no-op for existing
// membership; binding it to a different user is rejected. Unknown users and
// malformed tokens both fail with domain.ErrAuthenticationFailed.
func (r *Registry) Authenticate(ctx context.Context, connID, userID uuid.UUID, token string) error {
	if token == "" {
		return fmt.Errorf("malformed token: %w", domain.ErrAuthenticationFailed)
	}

	r.mu.RLock()
	c := r.conns[connID]
	r.mu.RUnlock()
	if c == nil {
		return domain.ErrConnectionNotFound
	}

	// User lookup happens outside the registry lock; it is I/O.
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("unknown user %s: %w", userID, domain.ErrAuthenticationFailed)
		}
		return fmt.Errorf("failed to validate user: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		// Evicted while we were validating.
		return domain.ErrConnectionNotFound
	}
	if bound, ok := c.UserID(); ok {
		if bound != userID {
			// Rebinding would leave a stale entry in the first user's set.
			return fmt.Errorf("connection already bound to another user: %w", domain.ErrAuthenticationFailed)
		}
		return nil
	}
	c.bind(userID)
	set := r.byUser[userID]
	if set == nil {
		set = make(map[uuid.UUID]*Conn)
		r.byUser[userID] = set
	}
	set[connID] = c
	metrics.AuthenticatedUsers.Set(float64(len(r.byUser)))

	slog.Info("connection authenticated", "connection_id", connID.String(), "user_id", userID.String(), "user_connections", len(set))
	return nil
}

// Remove detaches and closes a connection. Removing the last connection of a
// user removes the user's entry entirely. Removing an unknown connection is
// a no-op.
func (r *Registry) Remove(connID uuid.UUID) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	if userID, authenticated := c.UserID(); authenticated {
		if set := r.byUser[userID]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
	total := len(r.conns)
	users := len(r.byUser)
	r.mu.Unlock()

	c.stop()
	metrics.ConnectionsActive.Set(float64(total))
	metrics.AuthenticatedUsers.Set(float64(users))
	slog.Debug("connection removed", "connection_id", connID.String(), "total_connections", total)
}

// ConnectionsFor returns the user's live connections. An empty result is the
// common case, not an error.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	conns := make([]*Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Get returns a connection by ID, or nil.
func (r *Registry) Get(connID uuid.UUID) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// CloseAll closes every connection with a close frame, used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[uuid.UUID]*Conn)
	r.byUser = make(map[uuid.UUID]map[uuid.UUID]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.stopGraceful(reason)
	}
	metrics.ConnectionsActive.Set(0)
	metrics.AuthenticatedUsers.Set(0)
	slog.Info("all connections closed", "count", len(conns))
}
