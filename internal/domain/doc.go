// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (order.go, commission.go,
// notification.go, etc.) with shared types and cross-cutting repository
// interfaces. No implementation code - just contracts. Prevents circular
// imports by keeping interfaces on the consumer side.
package domain
