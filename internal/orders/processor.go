package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/logging"
	"github.com/martlabs/orderpulse/internal/metrics"
)

// ErrInvalidPaymentEvent marks a payment event that fails structural
// validation and must be rejected before any write.
var ErrInvalidPaymentEvent = errors.New("invalid payment event")

// Broadcaster pushes updates to live connections. Failures inside it never
// surface here; the durable writes are already committed when it runs.
type Broadcaster interface {
	BroadcastOrderUpdate(order *domain.Order)
	BroadcastStatusChange(order *domain.Order, newStatus, oldStatus domain.OrderStatus)
	BroadcastNotification(n *domain.Notification)
}

// Deduper is an advisory replay filter in front of the database. It may
// return false negatives (event never seen) without harming correctness; the
// unique index on payment_event_id is the authoritative guard.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Processor turns payment events into orders, order items, commissions,
// analytics and notifications, and drives the order status state machine.
type Processor struct {
	rate          decimal.Decimal
	orders        domain.OrderRepository
	notifications domain.NotificationRepository
	carts         domain.CartRepository
	dedupe        Deduper
	broadcaster   Broadcaster
	clock         clockwork.Clock
	locks         *keyedMutex
}

// NewProcessor wires the processor. dedupe may be nil, in which case every
// event takes the database path directly.
func NewProcessor(
	rate decimal.Decimal,
	orders domain.OrderRepository,
	notifications domain.NotificationRepository,
	carts domain.CartRepository,
	dedupe Deduper,
	broadcaster Broadcaster,
	clock clockwork.Clock,
) *Processor {
	return &Processor{
		rate:          rate,
		orders:        orders,
		notifications: notifications,
		carts:         carts,
		dedupe:        dedupe,
		broadcaster:   broadcaster,
		clock:         clock,
		locks:         newKeyedMutex(),
	}
}

// ProcessPaymentSucceeded handles one payment event end to end: idempotency
// check, order plus commission creation in a single transaction, cart
// clearing, notification persistence and realtime fan-out. Replays of an
// already processed event return the existing order with no new writes.
func (p *Processor) ProcessPaymentSucceeded(ctx context.Context, evt domain.PaymentEvent) (*domain.Order, error) {
	if err := validateEvent(evt); err != nil {
		return nil, err
	}

	if existing, ok, err := p.findExisting(ctx, evt.EventID); err != nil {
		return nil, err
	} else if ok {
		metrics.DuplicatePaymentEventsTotal.Inc()
		slog.Info("duplicate payment event, returning existing order",
			"event_id", evt.EventID, "order_id", existing.ID)
		return existing, nil
	}

	order, commissions := p.buildOrder(evt)

	err := p.orders.CreateFromPayment(ctx, order, commissions)
	if errors.Is(err, domain.ErrDuplicatePaymentEvent) {
		// Lost a race against a concurrent delivery of the same event.
		metrics.DuplicatePaymentEventsTotal.Inc()
		return p.orders.GetByPaymentEventID(ctx, evt.EventID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating order from payment event %s: %w", evt.EventID, err)
	}
	metrics.OrdersCreatedTotal.Inc()
	metrics.CommissionsCreatedTotal.Add(float64(len(commissions)))
	slog.Info("order created",
		"order_id", order.ID,
		"user_id", order.BuyerUserID,
		"event_id", evt.EventID,
		"items", len(order.Items),
		"total", order.TotalAmount.StringFixed(2))

	// The order is durable at this point. Everything below is best-effort
	// and must not fail the event.
	if err := p.carts.ClearCart(ctx, order.BuyerUserID); err != nil {
		slog.Error("clearing cart after order creation",
			"user_id", order.BuyerUserID, "order_id", order.ID, "error", err)
	}

	p.notifyOrderCreated(ctx, order)
	p.broadcaster.BroadcastOrderUpdate(order)

	return order, nil
}

// findExisting checks the advisory deduper and, independently, the database
// for an order already created from this event.
func (p *Processor) findExisting(ctx context.Context, eventID string) (*domain.Order, bool, error) {
	if p.dedupe != nil {
		if seen, err := p.dedupe.Seen(ctx, eventID); err != nil {
			slog.Warn("event dedupe check failed, falling through to database", "event_id", eventID, "error", err)
		} else if seen {
			existing, err := p.orders.GetByPaymentEventID(ctx, eventID)
			if err == nil {
				return existing, true, nil
			}
			if !errors.Is(err, domain.ErrOrderNotFound) {
				return nil, false, err
			}
			// Marked seen but no order yet: a concurrent delivery is still
			// in flight, or the marker outlived a rolled-back transaction.
			// Let the unique index decide.
		}
	}

	existing, err := p.orders.GetByPaymentEventID(ctx, eventID)
	if err == nil {
		return existing, true, nil
	}
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

func (p *Processor) buildOrder(evt domain.PaymentEvent) (*domain.Order, []domain.Commission) {
	now := p.clock.Now().UTC()
	orderID := uuid.New()

	items := make([]domain.OrderItem, 0, len(evt.LineItems))
	computed := decimal.Zero
	for _, line := range evt.LineItems {
		item := domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: line.ProductID,
			SellerID:  line.SellerID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Status:    domain.StatusConfirmed,
		}
		items = append(items, item)
		computed = computed.Add(item.SaleAmount())
	}

	total := evt.TotalAmount
	if total.IsZero() {
		total = computed
	} else if !total.Equal(computed) {
		slog.Warn("payment event total differs from line item sum",
			"event_id", evt.EventID,
			"event_total", total.StringFixed(2),
			"computed_total", computed.StringFixed(2))
	}

	commissions := make([]domain.Commission, 0, len(items))
	for _, item := range items {
		commissions = append(commissions, domain.NewCommission(item, p.rate, now))
	}

	return &domain.Order{
		ID:              orderID,
		PaymentEventID:  evt.EventID,
		BuyerUserID:     evt.BuyerUserID,
		Status:          domain.StatusConfirmed,
		TotalAmount:     total,
		ShippingAddress: evt.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}, commissions
}

// notifyOrderCreated persists and broadcasts the buyer confirmation and one
// sale notification per distinct seller.
func (p *Processor) notifyOrderCreated(ctx context.Context, order *domain.Order) {
	p.sendNotification(ctx, &domain.Notification{
		ID:        uuid.New(),
		UserID:    order.BuyerUserID,
		Type:      domain.NotificationOrderConfirmed,
		Title:     "Order confirmed",
		Message:   fmt.Sprintf("Your order %s has been confirmed.", order.ID),
		CreatedAt: p.clock.Now().UTC(),
	})

	earnings := make(map[uuid.UUID]decimal.Decimal, len(order.Items))
	for _, item := range order.Items {
		earnings[item.SellerID] = earnings[item.SellerID].Add(item.SaleAmount())
	}
	for _, sellerID := range order.Sellers() {
		p.sendNotification(ctx, &domain.Notification{
			ID:        uuid.New(),
			UserID:    sellerID,
			Type:      domain.NotificationNewSale,
			Title:     "New sale",
			Message:   fmt.Sprintf("You sold items worth %s in order %s.", earnings[sellerID].StringFixed(2), order.ID),
			CreatedAt: p.clock.Now().UTC(),
		})
	}
}

func (p *Processor) sendNotification(ctx context.Context, n *domain.Notification) {
	if err := p.notifications.Create(ctx, n); err != nil {
		logging.WithUser(n.UserID.String()).Error("persisting notification", "type", n.Type, "error", err)
		return
	}
	p.broadcaster.BroadcastNotification(n)
}

// TransitionStatus moves an order to a new lifecycle status. Transitions on
// the same order are serialised by a per-order lock and rechecked with a
// compare-and-swap update, so concurrent callers observe exactly one winner.
func (p *Processor) TransitionStatus(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", to, domain.ErrInvalidTransition)
	}

	unlock := p.locks.Lock(orderID)
	defer unlock()

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !CanTransition(from, to) {
		metrics.InvalidTransitionsTotal.Inc()
		return nil, fmt.Errorf("%s to %s: %w", from, to, domain.ErrInvalidTransition)
	}

	if err := p.orders.UpdateStatus(ctx, orderID, from, to); err != nil {
		return nil, err
	}
	metrics.StatusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()

	order.Status = to
	order.UpdatedAt = p.clock.Now().UTC()
	for i := range order.Items {
		order.Items[i].Status = to
	}
	logging.WithOrder(order.ID.String()).Info("order status changed", "from", from, "to", to)

	p.sendNotification(ctx, &domain.Notification{
		ID:        uuid.New(),
		UserID:    order.BuyerUserID,
		Type:      domain.NotificationStatusUpdate,
		Title:     "Order status updated",
		Message:   fmt.Sprintf("Your order %s is now %s.", order.ID, to),
		CreatedAt: p.clock.Now().UTC(),
	})
	p.broadcaster.BroadcastStatusChange(order, to, from)

	return order, nil
}

func validateEvent(evt domain.PaymentEvent) error {
	if evt.EventID == "" {
		return fmt.Errorf("missing event id: %w", ErrInvalidPaymentEvent)
	}
	if evt.BuyerUserID == uuid.Nil {
		return fmt.Errorf("missing buyer: %w", ErrInvalidPaymentEvent)
	}
	if len(evt.LineItems) == 0 {
		return fmt.Errorf("no line items: %w", ErrInvalidPaymentEvent)
	}
	for i, line := range evt.LineItems {
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity must be positive: %w", i, ErrInvalidPaymentEvent)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: negative unit price: %w", i, ErrInvalidPaymentEvent)
		}
		if line.ProductID == uuid.Nil || line.SellerID == uuid.Nil {
			return fmt.Errorf("line %d: missing product or seller: %w", i, ErrInvalidPaymentEvent)
		}
	}
	return nil
}
