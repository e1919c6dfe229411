// Package orders implements the order event processor: the order state
// machine, per-line commission computation, seller analytics upserts and the
// idempotent handling of at-least-once payment events. Broadcasting to live
// clients is invoked from here but the ledger is correct without it.
package orders
