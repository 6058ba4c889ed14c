// internal/router/opener.go
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConn is a live, pooled handle to one tenant's store.
// *pgxpool.Pool satisfies it directly.
type StoreConn interface {
	Ping(ctx context.Context) error
	Close()
}

// Opener turns a store descriptor into a live connection. Swapped for a
// memory implementation in dev and tests.
type Opener interface {
	Open(ctx context.Context, dsn string) (StoreConn, error)
}

// PgxOpener opens a pgx pool against the tenant's database and verifies it
// with a ping before handing it out.
type PgxOpener struct{}

func (PgxOpener) Open(ctx context.Context, dsn string) (StoreConn, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// MemoryOpener pairs with the memory provisioner for dev bring-up.
type MemoryOpener struct{}

func (MemoryOpener) Open(_ context.Context, dsn string) (StoreConn, error) {
	if !strings.HasPrefix(dsn, "memory://") {
		return nil, fmt.Errorf("memory opener: unsupported dsn %q", dsn)
	}
	return memConn{}, nil
}

type memConn struct{}

func (memConn) Ping(context.Context) error { return nil }
func (memConn) Close()                     {}
