package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/martlabs/orderpulse/internal/config"
	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/orders"
	"github.com/martlabs/orderpulse/internal/realtime"
)

const testWebhookSecret = "unit-test-webhook-secret"

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// --- In-memory repositories ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (r *memUserRepo) add(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &domain.User{ID: id}
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func (r *memOrderRepo) add(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *memOrderRepo) CreateFromPayment(ctx context.Context, order *domain.Order, commissions []domain.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.PaymentEventID == order.PaymentEventID {
			return domain.ErrDuplicatePaymentEvent
		}
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrderRepo) GetByPaymentEventID(ctx context.Context, eventID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentEventID == eventID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
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

type memNotificationRepo struct {
	mu      sync.Mutex
	created []domain.Notification
}

func (r *memNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *n)
	return nil
}

func (r *memNotificationRepo) ListUnread(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.created {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	return out, nil
}

type memAnalyticsRepo struct {
	rows map[uuid.UUID]*domain.SellerDailyAnalytics
}

func (r *memAnalyticsRepo) GetSellerDay(ctx context.Context, sellerID uuid.UUID, day time.Time) (*domain.SellerDailyAnalytics, error) {
	if row, ok := r.rows[sellerID]; ok {
		return row, nil
	}
	return &domain.SellerDailyAnalytics{SellerID: sellerID, Date: day}, nil
}

type memCartRepo struct{}

func (memCartRepo) ClearCart(ctx context.Context, userID uuid.UUID) error { return nil }

// --- Test server assembly ---

type testEnv struct {
	srv           *Server
	users         *memUserRepo
	orders        *memOrderRepo
	notifications *memNotificationRepo
	analytics     *memAnalyticsRepo
	registry      *realtime.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, &config.Config{
		AppEnv:           "test",
		Port:             "0",
		WebhookSecret:    testWebhookSecret,
		WSMaxConnections: 100,
		WSMaxPerIP:       100,
		WSConnRate:       1000,
		WSConnBurst:      1000,
		HTTPRate:         1000,
		HTTPBurst:        1000,
	})
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	clock := clockwork.NewRealClock()

	users := &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
	orderRepo := &memOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	notifications := &memNotificationRepo{}
	analytics := &memAnalyticsRepo{rows: make(map[uuid.UUID]*domain.SellerDailyAnalytics)}

	registry := realtime.NewRegistry(users, clock)
	t.Cleanup(func() { registry.CloseAll("test over") })
	dispatcher := realtime.NewDispatcher(registry, orderRepo, notifications, clock)
	broadcaster := realtime.NewBroadcaster(registry)

	rate, _ := decimal.NewFromString("0.085")
	processor := orders.NewProcessor(rate, orderRepo, notifications, memCartRepo{}, nil, broadcaster, clock)

	return &testEnv{
		srv:           NewServer(cfg, registry, dispatcher, processor, orderRepo, analytics, nil, nil),
		users:         users,
		orders:        orderRepo,
		notifications: notifications,
		analytics:     analytics,
		registry:      registry,
	}
}
