// internal/registry/cache.go
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries tenant ids whose cached connections must be
// evicted. Published on delete/suspend; each router process subscribes.
const InvalidationChannel = "docharbor:tenant:invalidate"

// recordCache is an optional read-through cache for tenant records in
// front of the store's hot GetByID path. A nil client disables it.
// Entries are dropped on every lifecycle transition so routing decisions
// never act on a stale status.
type recordCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// publishInvalidate broadcasts a connection-eviction signal to every
// router in the fleet. The local invalidator covers the current process;
// this covers the rest.
func (c *recordCache) publishInvalidate(ctx context.Context, id uuid.UUID) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Publish(ctx, InvalidationChannel, id.String()).Err()
}

func (c *recordCache) key(id uuid.UUID) string { return "docharbor:tenant:" + id.String() }

func (c *recordCache) get(ctx context.Context, id uuid.UUID) (Tenant, bool) {
	if c == nil || c.rdb == nil {
		return Tenant{}, false
	}
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return Tenant{}, false
	}
	var t Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tenant{}, false
	}
	return t, true
}

func (c *recordCache) set(ctx context.Context, t Tenant) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(t.ID), raw, c.ttl).Err()
}

func (c *recordCache) drop(ctx context.Context, id uuid.UUID) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, c.key(id)).Err()
}
