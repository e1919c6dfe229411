package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	// ConnectionsActive tracks currently open WebSocket connections
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connections_active",
			Help: "Number of currently open WebSocket connections",
		},
	)

	// ConnectionsTotal tracks all connections ever opened
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connections_opened_total",
			Help: "Total WebSocket connections opened",
		},
	)

	// AuthenticatedUsers tracks distinct users with at least one live connection
	AuthenticatedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connections_authenticated_users",
			Help: "Distinct users with at least one live connection",
		},
	)

	// HeartbeatEvictionsTotal tracks connections evicted for missed pongs
	HeartbeatEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_evictions_total",
			Help: "Connections evicted after failing to acknowledge a heartbeat probe",
		},
	)

	// SlowClientsEvictedTotal tracks connections dropped for full send buffers
	SlowClientsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_slow_clients_evicted_total",
			Help: "Connections evicted because their send buffer was full",
		},
	)
)

// Frame and delivery metrics
var (
	// FramesReceivedTotal tracks inbound client frames by type
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_frames_received_total",
			Help: "Inbound WebSocket frames by message type",
		},
		[]string{"type"},
	)

	// FrameErrorsTotal tracks error frames returned to clients by reason
	FrameErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_frame_errors_total",
			Help: "Error frames returned to clients by reason",
		},
		[]string{"reason"},
	)

	// MessagesDeliveredTotal tracks server-push frames delivered by type
	MessagesDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_delivered_total",
			Help: "Server-push frames enqueued for delivery by type",
		},
		[]string{"type"},
	)

	// MessageSendDuration tracks WebSocket write latency
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ws_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Order pipeline metrics
var (
	// OrdersCreatedTotal tracks orders created from payment events
	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created from payment succeeded events",
		},
	)

	// DuplicatePaymentEventsTotal tracks replayed payment events short-circuited
	// by the idempotency guard
	DuplicatePaymentEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_events_duplicate_total",
			Help: "Payment events skipped by the idempotency guard",
		},
	)

	// CommissionsCreatedTotal tracks commission ledger rows written
	CommissionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commissions_created_total",
			Help: "Commission ledger rows created",
		},
	)

	// StatusTransitionsTotal tracks accepted order status transitions
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Accepted order status transitions by from/to state",
		},
		[]string{"from", "to"},
	)

	// InvalidTransitionsTotal tracks rejected transition requests
	InvalidTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_status_transitions_rejected_total",
			Help: "Order status transition requests rejected as invalid",
		},
	)

	// NotificationsPersistedTotal tracks notifications written to storage
	NotificationsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_persisted_total",
			Help: "Notifications persisted to storage",
		},
	)

	// WebhookRequestsTotal tracks payment webhook requests by outcome
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Payment webhook requests by outcome",
		},
		[]string{"outcome"},
	)
)
