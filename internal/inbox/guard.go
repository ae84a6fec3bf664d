package inbox

import (
	"context"
	"time"

	"github.com/lumicrm/payments-backend/pkg/redis"
)

// DuplicateGuard is the Redis fast path in front of the inbox claim. It
// absorbs redelivery storms without a database round trip; the unique insert
// in the repository stays authoritative, so a missed or expired Redis key is
// harmless.
type DuplicateGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewDuplicateGuard builds the guard. A nil store disables the fast path.
func NewDuplicateGuard(store redis.IdempotencyStore, ttl time.Duration) *DuplicateGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DuplicateGuard{store: store, ttl: ttl}
}

// FirstDelivery reports whether this is the first sighting of the event
// within the TTL window. Redis errors fail open: the database claim still
// filters duplicates.
func (g *DuplicateGuard) FirstDelivery(ctx context.Context, provider, eventID string) bool {
	if g == nil || g.store == nil {
		return true
	}
	first, err := g.store.SetNX(ctx, g.store.WebhookEventKey(provider, eventID), "1", g.ttl)
	if err != nil {
		return true
	}
	return first
}

// Forget drops the guard key so a later legitimate redelivery (after a
// processing failure) reaches the database again.
func (g *DuplicateGuard) Forget(ctx context.Context, provider, eventID string) {
	if g == nil || g.store == nil {
		return
	}
	_ = g.store.Del(ctx, g.store.WebhookEventKey(provider, eventID))
}
