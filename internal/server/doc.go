// Package server exposes the HTTP surface: the websocket endpoint, the
// signed payment webhook, the order REST API and the observability
// endpoints. Handlers translate between HTTP and the realtime and orders
// packages; no business rules live here.
package server
