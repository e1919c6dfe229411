package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martlabs/orderpulse/internal/domain"
)

func TestCanTransition_HappyPath(t *testing.T) {
	path := []domain.OrderStatus{
		domain.StatusConfirmed,
		domain.StatusProcessing,
		domain.StatusShipped,
		domain.StatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransition_CancellationFromPreDelivered(t *testing.T) {
	for _, from := range []domain.OrderStatus{
		domain.StatusPending,
		domain.StatusConfirmed,
		domain.StatusProcessing,
		domain.StatusShipped,
	} {
		assert.True(t, CanTransition(from, domain.StatusCancelled), "%s -> cancelled", from)
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	all := []domain.OrderStatus{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusProcessing,
		domain.StatusShipped, domain.StatusDelivered, domain.StatusCancelled,
	}
	for _, from := range []domain.OrderStatus{domain.StatusDelivered, domain.StatusCancelled} {
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_NoSkippingAndNoSelfLoops(t *testing.T) {
	assert.False(t, CanTransition(domain.StatusConfirmed, domain.StatusShipped))
	assert.False(t, CanTransition(domain.StatusConfirmed, domain.StatusDelivered))
	assert.False(t, CanTransition(domain.StatusProcessing, domain.StatusDelivered))
	assert.False(t, CanTransition(domain.StatusShipped, domain.StatusShipped))
	assert.False(t, CanTransition(domain.StatusShipped, domain.StatusConfirmed))
	assert.False(t, CanTransition("bogus", domain.StatusConfirmed))
}
