package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/martlabs/orderpulse/internal/domain"
)

// fakeTransport records everything written to it. Setting block makes
// WriteMessage stall, simulating a slow client; Close releases the stall the
// way tearing down a real socket aborts a pending write.
type fakeTransport struct {
	mu        sync.Mutex
	messages  []fakeMessage
	closed    bool
	block     chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
}

type fakeMessage struct {
	messageType int
	data        []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closeCh: make(chan struct{})}
}

func (t *fakeTransport) WriteMessage(messageType int, data []byte) error {
	if t.block != nil {
		select {
		case <-t.block:
		case <-t.closeCh:
			return errors.New("transport closed")
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, fakeMessage{messageType, append([]byte(nil), data...)})
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closeCh) })
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) countType(messageType int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.messages {
		if m.messageType == messageType {
			n++
		}
	}
	return n
}

func (t *fakeTransport) textMessages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [][]byte
	for _, m := range t.messages {
		if m.messageType == websocket.TextMessage {
			out = append(out, m.data)
		}
	}
	return out
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(ids ...uuid.UUID) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, id := range ids {
		r.users[id] = &domain.User{ID: id}
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) CreateFromPayment(ctx context.Context, order *domain.Order, commissions []domain.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return o, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) GetByPaymentEventID(ctx context.Context, eventID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentEventID == eventID {
			return o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrStatusConflict
	}
	o.Status = to
	return nil
}

type fakeNotificationRepo struct {
	mu     sync.Mutex
	unread map[uuid.UUID][]domain.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{unread: make(map[uuid.UUID][]domain.Notification)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unread[n.UserID] = append(r.unread[n.UserID], *n)
	return nil
}

func (r *fakeNotificationRepo) ListUnread(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.unread[userID]...), nil
}
