// Package realtime implements the live-connection half of the pipeline: the
// connection registry, heartbeat eviction, inbound frame dispatch and the
// broadcast fan-out.
//
// The registry is the single shared mutable structure, guarded by a mutex
// and never exposed directly. Each connection owns a buffered send channel
// drained by one writer goroutine, so delivery to a slow client never blocks
// a broadcast; a full buffer marks the client dead and it is evicted. The
// dispatcher is a pure frame handler, testable without any transport.
package realtime
