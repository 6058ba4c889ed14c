// internal/router/router.go
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docharbor/internal/registry"
)

var (
	ErrTenantNotFound = errors.New("router: tenant not found")
	ErrTenantInactive = errors.New("router: tenant inactive")
	// ErrStoreUnreachable is returned once the bounded retry budget for a
	// connection open is exhausted.
	ErrStoreUnreachable = errors.New("router: store unreachable")
	// ErrDrainTimeout is returned by Invalidate when in-flight references
	// did not drain in time; the connection is force-closed regardless.
	ErrDrainTimeout = errors.New("router: drain timeout")
)

// TenantSource is the registry surface the router needs. Satisfied by
// *registry.Service.
type TenantSource interface {
	GetTenant(ctx context.Context, id uuid.UUID) (registry.Tenant, error)
	TouchVerified(ctx context.Context, id uuid.UUID)
}

// Options tune the cache. Zero values fall back to conservative defaults;
// deployments override via config.
type Options struct {
	MaxEntries     int
	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	ConnectTimeout time.Duration
	// RetryBudget is the number of retries after the first open attempt.
	RetryBudget  int
	DrainTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.MaxEntries <= 0 {
		o.MaxEntries = 256
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 10 * time.Second
	}
}

type entry struct {
	tenantID uuid.UUID
	conn     StoreConn
	refs     int
	lastUsed time.Time
}

// Handle is a refcounted reference to a cached connection. Callers must
// Release when done with the request; handles are never held across
// requests.
type Handle struct {
	rt       *Router
	e        *entry
	released bool
}

// Conn exposes the underlying store connection.
func (h *Handle) Conn() StoreConn { return h.e.conn }

// TenantID reports which tenant this handle is bound to.
func (h *Handle) TenantID() uuid.UUID { return h.e.tenantID }

// Release decrements the reference count. It never closes the connection;
// closing is an eviction-time decision. Safe to call twice.
func (h *Handle) Release() {
	h.rt.mu.Lock()
	defer h.rt.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.e.refs--
	h.e.lastUsed = time.Now()
}

// Router owns the only tenant->connection table in the system. All map
// mutations (insert, evict, refcount) happen under one mutex scoped to the
// map, so insert/evict races cannot occur.
type Router struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	// gens counts invalidations per tenant. An open that started before an
	// invalidation must not insert its connection afterward; it compares
	// the generation before the registry lookup and before the insert and
	// starts over when they differ. Never pruned: tenant identities are
	// never reassigned and a counter costs a few bytes.
	gens map[uuid.UUID]uint64

	flight  singleflight.Group
	tenants TenantSource
	opener  Opener
	opts    Options
	log     *zap.SugaredLogger
}

func New(tenants TenantSource, opener Opener, opts Options, log *zap.SugaredLogger) *Router {
	opts.withDefaults()
	return &Router{
		entries: map[uuid.UUID]*entry{},
		gens:    map[uuid.UUID]uint64{},
		tenants: tenants,
		opener:  opener,
		opts:    opts,
		log:     log,
	}
}

// Resolve returns a live handle to the tenant's store. Cache hits take one
// mutex acquisition; misses coalesce into a single connection open per
// tenant via singleflight, so a burst of first-access requests cannot
// exhaust the store's connection limit.
func (rt *Router) Resolve(ctx context.Context, tenantID uuid.UUID) (*Handle, error) {
	rt.mu.Lock()
	if e, ok := rt.entries[tenantID]; ok {
		e.refs++
		e.lastUsed = time.Now()
		rt.mu.Unlock()
		cacheHits.Inc()
		return &Handle{rt: rt, e: e}, nil
	}
	rt.mu.Unlock()
	cacheMisses.Inc()

	for attempt := 0; attempt < 3; attempt++ {
		var opened bool
		v, err, _ := rt.flight.Do(tenantID.String(), func() (interface{}, error) {
			opened = true
			return rt.open(ctx, tenantID)
		})
		if err != nil {
			// The flight is finished either way, so a later caller gets a
			// fresh attempt instead of a stuck slot.
			return nil, err
		}
		e := v.(*entry)
		if opened {
			// open took this caller's reference under the map mutex, so
			// the entry cannot have been evicted underneath us.
			return &Handle{rt: rt, e: e}, nil
		}
		// Coalesced caller: claim a reference on the shared result. The
		// entry is only gone if it was invalidated or swept after the
		// opener released; retry with a fresh flight.
		rt.mu.Lock()
		if cur, ok := rt.entries[tenantID]; ok && cur == e {
			cur.refs++
			cur.lastUsed = time.Now()
			rt.mu.Unlock()
			return &Handle{rt: rt, e: cur}, nil
		}
		rt.mu.Unlock()
	}
	// Pathological churn on the shared slot; open without coalescing.
	e, err := rt.open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &Handle{rt: rt, e: e}, nil
}

// open performs the miss path: registry lookup, bounded-retry dial, insert.
// The returned entry carries the caller's reference, taken under the same
// mutex hold as the insert, so a fresh entry can never be evicted before
// its opener uses it. An invalidation racing the open bumps the tenant's
// generation; the stale connection is discarded and the status re-checked.
func (rt *Router) open(ctx context.Context, tenantID uuid.UUID) (*entry, error) {
	for {
		rt.mu.Lock()
		if e, ok := rt.entries[tenantID]; ok {
			e.refs++
			e.lastUsed = time.Now()
			rt.mu.Unlock()
			return e, nil
		}
		gen := rt.gens[tenantID]
		rt.mu.Unlock()

		t, err := rt.tenants.GetTenant(ctx, tenantID)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
			}
			return nil, fmt.Errorf("registry lookup: %w", err)
		}
		if t.Status != registry.StatusActive {
			return nil, fmt.Errorf("%w: tenant %s is %s", ErrTenantInactive, tenantID, t.Status)
		}

		conn, err := rt.dial(ctx, t.StoreDSN)
		if err != nil {
			return nil, err
		}
		connOpens.Inc()

		rt.mu.Lock()
		if rt.gens[tenantID] != gen {
			// Invalidated while we were opening: the registry snapshot is
			// stale. Discard the connection and start over.
			rt.mu.Unlock()
			conn.Close()
			continue
		}
		if cur, ok := rt.entries[tenantID]; ok {
			cur.refs++
			cur.lastUsed = time.Now()
			rt.mu.Unlock()
			conn.Close()
			return cur, nil
		}
		e := &entry{tenantID: tenantID, conn: conn, refs: 1, lastUsed: time.Now()}
		rt.entries[tenantID] = e
		victims := rt.evictOverCapLocked()
		cacheSize.Set(float64(len(rt.entries)))
		rt.mu.Unlock()

		rt.tenants.TouchVerified(ctx, tenantID)
		for _, v := range victims {
			v.conn.Close()
			evictions.Inc()
		}
		return e, nil
	}
}

// dial opens the connection with a per-attempt timeout and a bounded
// exponential-backoff retry budget. An unreachable store is a degraded
// service condition reported upward, not retried forever.
func (rt *Router) dial(ctx context.Context, dsn string) (StoreConn, error) {
	var conn StoreConn
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, rt.opts.ConnectTimeout)
		defer cancel()
		c, err := rt.opener.Open(attemptCtx, dsn)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(rt.opts.RetryBudget)), ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return conn, nil
}

// evictOverCapLocked enforces the max-entry bound by LRU among
// unreferenced entries. If every entry is referenced the cache runs over
// capacity temporarily; the sweeper catches up. Never evicts refs > 0.
func (rt *Router) evictOverCapLocked() []*entry {
	var victims []*entry
	for len(rt.entries) > rt.opts.MaxEntries {
		var oldest *entry
		for _, e := range rt.entries {
			if e.refs > 0 {
				continue
			}
			if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
				oldest = e
			}
		}
		if oldest == nil {
			break
		}
		delete(rt.entries, oldest.tenantID)
		victims = append(victims, oldest)
	}
	return victims
}

// Invalidate forcibly evicts and closes the cached entry for a tenant.
// The entry leaves the map immediately so no new references can be taken,
// then we wait for in-flight references to drain before closing. On drain
// timeout the connection is force-closed anyway. The generation bump
// happens whether or not an entry is cached: an open still in flight must
// not insert a connection based on a pre-invalidation registry snapshot.
func (rt *Router) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	rt.mu.Lock()
	rt.gens[tenantID]++
	e, ok := rt.entries[tenantID]
	if ok {
		delete(rt.entries, tenantID)
		cacheSize.Set(float64(len(rt.entries)))
	}
	rt.mu.Unlock()
	if !ok {
		return nil
	}
	defer evictions.Inc()

	deadline := time.NewTimer(rt.opts.DrainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		rt.mu.Lock()
		refs := e.refs
		rt.mu.Unlock()
		if refs == 0 {
			e.conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			e.conn.Close()
			return ctx.Err()
		case <-deadline.C:
			e.conn.Close()
			return fmt.Errorf("%w: tenant %s had %d references", ErrDrainTimeout, tenantID, refs)
		case <-tick.C:
		}
	}
}

// Run drives the background idle sweep until ctx is cancelled, then closes
// every unreferenced connection.
func (rt *Router) Run(ctx context.Context) {
	t := time.NewTicker(rt.opts.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			rt.closeIdle(time.Time{})
			return
		case <-t.C:
			rt.closeIdle(time.Now().Add(-rt.opts.IdleTimeout))
		}
	}
}

// closeIdle evicts unreferenced entries whose lastUsed is before cutoff.
// A zero cutoff means "all unreferenced entries" (shutdown).
func (rt *Router) closeIdle(cutoff time.Time) {
	var victims []*entry
	rt.mu.Lock()
	for id, e := range rt.entries {
		if e.refs > 0 {
			continue
		}
		if cutoff.IsZero() || e.lastUsed.Before(cutoff) {
			delete(rt.entries, id)
			victims = append(victims, e)
		}
	}
	cacheSize.Set(float64(len(rt.entries)))
	rt.mu.Unlock()
	for _, v := range victims {
		v.conn.Close()
		evictions.Inc()
	}
	if len(victims) > 0 {
		rt.log.Debugw("swept idle connections", "count", len(victims))
	}
}

// Len reports the current number of cached entries.
func (rt *Router) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.entries)
}
