// internal/router/invalidation.go
package router

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docharbor/internal/registry"
)

// SubscribeInvalidations consumes the registry's invalidation channel and
// evicts the named tenants from this process's cache. Blocks until ctx is
// cancelled; run it as a goroutine next to Run.
func (rt *Router) SubscribeInvalidations(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		return
	}
	sub := rdb.Subscribe(ctx, registry.InvalidationChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				rt.log.Warnw("invalidation message", "payload", msg.Payload, "err", err)
				continue
			}
			if err := rt.Invalidate(ctx, id); err != nil {
				rt.log.Warnw("invalidate", "tenant", id, "err", err)
			}
		}
	}
}
