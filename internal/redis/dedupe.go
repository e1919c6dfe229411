package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Payment webhooks are redelivered within minutes, not days; 24h of dedupe
// state comfortably covers gateway retry schedules.
const dedupeTTL = 24 * time.Hour

// EventDeduper short-circuits replayed payment events before they reach the
// database. SetNX marks an event the first time it is seen; a replay finds
// the key already set.
type EventDeduper struct {
	rdb *goredis.Client
}

func NewEventDeduper(rdb *goredis.Client) *EventDeduper {
	return &EventDeduper{rdb: rdb}
}

// Seen marks eventID as observed and reports whether it had been observed
// before. Callers must treat a positive answer as a hint only and fall back
// to the database guard.
func (d *EventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	set, err := d.rdb.SetNX(ctx, dedupeKey(eventID), "1", dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check payment event dedupe: %w", err)
	}
	return !set, nil
}

func dedupeKey(eventID string) string {
	return "payment_event:" + eventID
}
