// internal/provision/provision.go
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docharbor/internal/registry"
)

var (
	// ErrAlreadyProvisioned signals a second provision call for an identity
	// that already owns a store. Never silently creates a second store.
	ErrAlreadyProvisioned = errors.New("provision: already provisioned")
)

// DatabaseAdmin is the opaque contract with the data-store provider.
type DatabaseAdmin interface {
	// CreateDatabase creates an isolated database and returns a DSN that
	// opens it.
	CreateDatabase(ctx context.Context, name string) (string, error)
	// DropDatabase destroys the database. Idempotent: dropping a database
	// that no longer exists is not an error.
	DropDatabase(ctx context.Context, name string) error
}

// BlobNamespaces is the opaque contract with object storage.
type BlobNamespaces interface {
	CreateNamespace(ctx context.Context, name string) error
	DeleteNamespace(ctx context.Context, name string) error
}

// Provisioner creates and destroys per-tenant physical resources. Failures
// are never retried here: side effects may be partial, and the registry
// surfaces them for explicit operator re-invocation.
type Provisioner struct {
	dbs        DatabaseAdmin
	blobs      BlobNamespaces
	blobPrefix string
	log        *zap.SugaredLogger
}

func New(dbs DatabaseAdmin, blobs BlobNamespaces, blobPrefix string, log *zap.SugaredLogger) *Provisioner {
	if blobPrefix == "" {
		blobPrefix = "docharbor-tenant"
	}
	return &Provisioner{dbs: dbs, blobs: blobs, blobPrefix: blobPrefix, log: log}
}

// DatabaseName derives the tenant's database name from its identity. The
// identity is immutable, so the name is stable across calls.
func (p *Provisioner) DatabaseName(t registry.Tenant) string {
	return "tenant_" + strings.ReplaceAll(t.ID.String(), "-", "")
}

// NamespaceName derives the tenant's blob namespace.
func (p *Provisioner) NamespaceName(t registry.Tenant) string {
	return p.blobPrefix + "-" + t.ID.String()
}

// Provision creates the tenant's database and blob namespace. Idempotent:
// a tenant that already carries a descriptor fails with AlreadyProvisioned
// rather than getting a second store.
func (p *Provisioner) Provision(ctx context.Context, t registry.Tenant) (registry.StoreDescriptor, error) {
	if t.StoreDSN != "" {
		return registry.StoreDescriptor{}, fmt.Errorf("%w: tenant %s", ErrAlreadyProvisioned, t.ID)
	}
	dbName := p.DatabaseName(t)
	dsn, err := p.dbs.CreateDatabase(ctx, dbName)
	if err != nil {
		return registry.StoreDescriptor{}, fmt.Errorf("create database %s: %w", dbName, err)
	}
	ns := p.NamespaceName(t)
	if err := p.blobs.CreateNamespace(ctx, ns); err != nil {
		// Database exists but the namespace does not; report upward and
		// leave cleanup to the caller's failure path.
		return registry.StoreDescriptor{}, fmt.Errorf("create namespace %s: %w", ns, err)
	}
	p.log.Infow("tenant store provisioned", "tenant", t.ID, "database", dbName, "namespace", ns)
	return registry.StoreDescriptor{DSN: dsn, Database: dbName, BlobNamespace: ns}, nil
}

// Deprovision irreversibly destroys the tenant's resources. Safe to call
// on a partially-destroyed store.
func (p *Provisioner) Deprovision(ctx context.Context, t registry.Tenant) error {
	var errs []error
	if err := p.dbs.DropDatabase(ctx, p.DatabaseName(t)); err != nil {
		errs = append(errs, fmt.Errorf("drop database: %w", err))
	}
	ns := t.BlobNamespace
	if ns == "" {
		ns = p.NamespaceName(t)
	}
	if err := p.blobs.DeleteNamespace(ctx, ns); err != nil {
		errs = append(errs, fmt.Errorf("delete namespace: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.log.Infow("tenant store deprovisioned", "tenant", t.ID)
	return nil
}
