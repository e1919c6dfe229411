package orders

import "github.com/martlabs/orderpulse/internal/domain"

// allowedTransitions is the full order lifecycle graph. Terminal states have
// no outgoing edges; cancellation is possible from every pre-delivered state.
var allowedTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.StatusPending:    {domain.StatusConfirmed, domain.StatusCancelled},
	domain.StatusConfirmed:  {domain.StatusProcessing, domain.StatusCancelled},
	domain.StatusProcessing: {domain.StatusShipped, domain.StatusCancelled},
	domain.StatusShipped:    {domain.StatusDelivered, domain.StatusCancelled},
	domain.StatusDelivered:  {},
	domain.StatusCancelled:  {},
}

// CanTransition reports whether the lifecycle graph permits moving an order
// from one status to another. Self transitions are not permitted.
func CanTransition(from, to domain.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
