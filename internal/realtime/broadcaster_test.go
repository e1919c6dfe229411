package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martlabs/orderpulse/internal/domain"
)

type broadcastEnv struct {
	registry    *Registry
	broadcaster *Broadcaster
	users       *fakeUserRepo
}

func newBroadcastEnv() *broadcastEnv {
	users := newFakeUserRepo()
	registry := NewRegistry(users, clockwork.NewFakeClock())
	return &broadcastEnv{
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		users:       users,
	}
}

// connect registers an authenticated connection for the user and returns its
// transport for inspecting delivered frames.
func (e *broadcastEnv) connect(t *testing.T, userID uuid.UUID) *fakeTransport {
	t.Helper()
	e.users.mu.Lock()
	e.users.users[userID] = &domain.User{ID: userID}
	e.users.mu.Unlock()

	transport := newFakeTransport()
	c := e.registry.Register(transport)
	require.NoError(t, e.registry.Authenticate(context.Background(), c.ID(), userID, "tok"))
	t.Cleanup(func() { e.registry.Remove(c.ID()) })
	return transport
}

func frameTypes(t *testing.T, transport *fakeTransport) []string {
	t.Helper()
	var types []string
	for _, raw := range transport.textMessages() {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(raw, &frame))
		types = append(types, frame["type"].(string))
	}
	return types
}

func TestBroadcaster_SendToUserFansOutToAllDevices(t *testing.T) {
	env := newBroadcastEnv()
	userID := uuid.New()
	t1 := env.connect(t, userID)
	t2 := env.connect(t, userID)

	env.broadcaster.SendToUser(userID, []byte(`{"type":"test"}`))

	for _, tr := range []*fakeTransport{t1, t2} {
		require.True(t, waitFor(func() bool { return len(tr.textMessages()) == 1 }))
	}
}

func TestBroadcaster_SendToUserWithoutConnectionsIsNoop(t *testing.T) {
	env := newBroadcastEnv()
	env.broadcaster.SendToUser(uuid.New(), []byte(`{"type":"test"}`))
}

func TestBroadcaster_OrderUpdateReachesBuyerAndSellers(t *testing.T) {
	env := newBroadcastEnv()
	buyer := uuid.New()
	seller1 := uuid.New()
	seller2 := uuid.New()
	stranger := uuid.New()

	buyerTr := env.connect(t, buyer)
	seller1Tr := env.connect(t, seller1)
	seller2Tr := env.connect(t, seller2)
	strangerTr := env.connect(t, stranger)

	order := &domain.Order{
		ID: uuid.New(), BuyerUserID: buyer, Status: domain.StatusShipped,
		Items: []domain.OrderItem{
			{ID: uuid.New(), SellerID: seller1},
			{ID: uuid.New(), SellerID: seller2},
			{ID: uuid.New(), SellerID: seller1},
		},
	}
	env.broadcaster.BroadcastOrderUpdate(order)

	for _, tr := range []*fakeTransport{buyerTr, seller1Tr, seller2Tr} {
		require.True(t, waitFor(func() bool { return len(tr.textMessages()) == 1 }))
		assert.Equal(t, []string{FrameTrackingUpdate}, frameTypes(t, tr))
	}
	assert.Empty(t, strangerTr.textMessages())
}

func TestBroadcaster_BuyerWhoIsAlsoSellerGetsOneFrame(t *testing.T) {
	env := newBroadcastEnv()
	userID := uuid.New()
	tr := env.connect(t, userID)

	order := &domain.Order{
		ID: uuid.New(), BuyerUserID: userID,
		Items: []domain.OrderItem{{ID: uuid.New(), SellerID: userID}},
	}
	env.broadcaster.BroadcastOrderUpdate(order)

	require.True(t, waitFor(func() bool { return len(tr.textMessages()) == 1 }))
	// No duplicate delivery for the dual role.
	assert.Len(t, tr.textMessages(), 1)
}

func TestBroadcaster_StatusChangeGoesToBuyerOnly(t *testing.T) {
	env := newBroadcastEnv()
	buyer := uuid.New()
	seller := uuid.New()
	buyerTr := env.connect(t, buyer)
	sellerTr := env.connect(t, seller)

	order := &domain.Order{
		ID: uuid.New(), BuyerUserID: buyer,
		Items: []domain.OrderItem{{ID: uuid.New(), SellerID: seller}},
	}
	env.broadcaster.BroadcastStatusChange(order, domain.StatusShipped, domain.StatusProcessing)

	require.True(t, waitFor(func() bool { return len(buyerTr.textMessages()) == 1 }))

	var frame map[string]any
	require.NoError(t, json.Unmarshal(buyerTr.textMessages()[0], &frame))
	assert.Equal(t, FrameStatusChange, frame["type"])
	assert.Equal(t, string(domain.StatusShipped), frame["newStatus"])
	assert.Equal(t, string(domain.StatusProcessing), frame["oldStatus"])

	assert.Empty(t, sellerTr.textMessages())
}

func TestBroadcaster_NotificationFrame(t *testing.T) {
	env := newBroadcastEnv()
	userID := uuid.New()
	tr := env.connect(t, userID)

	n := &domain.Notification{
		ID: uuid.New(), UserID: userID,
		Type: domain.NotificationNewSale, Title: "New sale", Message: "You sold items",
	}
	env.broadcaster.BroadcastNotification(n)

	require.True(t, waitFor(func() bool { return len(tr.textMessages()) == 1 }))
	var frame map[string]any
	require.NoError(t, json.Unmarshal(tr.textMessages()[0], &frame))
	assert.Equal(t, FrameNotification, frame["type"])
	assert.Equal(t, domain.NotificationNewSale, frame["notificationType"])
	assert.Equal(t, n.ID.String(), frame["id"])
}

func TestBroadcaster_SlowClientIsEvictedWithoutStoppingFanout(t *testing.T) {
	env := newBroadcastEnv()
	userID := uuid.New()

	env.users.mu.Lock()
	env.users.users[userID] = &domain.User{ID: userID}
	env.users.mu.Unlock()

	// Slow connection: writes stall until the block channel closes, so its
	// send buffer fills up.
	slowTr := newFakeTransport()
	slowTr.block = make(chan struct{})
	defer close(slowTr.block)
	slow := env.registry.Register(slowTr)
	require.NoError(t, env.registry.Authenticate(context.Background(), slow.ID(), userID, "tok"))

	healthyTr := env.connect(t, userID)

	// One frame in flight inside the writer plus a full channel buffer.
	for range messageBufferSize + 1 {
		env.broadcaster.SendToUser(userID, []byte(`{"type":"filler"}`))
	}
	env.broadcaster.SendToUser(userID, []byte(`{"type":"final"}`))

	require.True(t, waitFor(func() bool { return env.registry.Get(slow.ID()) == nil }), "slow client should be evicted")
	require.True(t, waitFor(func() bool { return len(healthyTr.textMessages()) == messageBufferSize+2 }),
		"healthy connection receives every frame")
}
