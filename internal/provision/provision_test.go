package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docharbor/internal/registry"
)

func newTestProvisioner() (*Provisioner, *MemoryDatabaseAdmin, *MemoryBlobNamespaces) {
	dbs := NewMemoryDatabaseAdmin()
	blobs := NewMemoryBlobNamespaces()
	return New(dbs, blobs, "docharbor-tenant", zap.NewNop().Sugar()), dbs, blobs
}

func TestProvisionCreatesBothResources(t *testing.T) {
	p, dbs, blobs := newTestProvisioner()
	tenant := registry.Tenant{ID: uuid.New()}

	desc, err := p.Provision(context.Background(), tenant)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(desc.DSN, "memory://"))
	require.Equal(t, p.DatabaseName(tenant), desc.Database)
	require.Equal(t, p.NamespaceName(tenant), desc.BlobNamespace)
	require.True(t, dbs.Exists(desc.Database))
	require.True(t, blobs.Exists(desc.BlobNamespace))
}

func TestProvisionNamesAreStable(t *testing.T) {
	p, _, _ := newTestProvisioner()
	tenant := registry.Tenant{ID: uuid.New()}

	require.Equal(t, p.DatabaseName(tenant), p.DatabaseName(tenant))
	require.NotContains(t, p.DatabaseName(tenant), "-", "database names avoid identifier-hostile characters")
	require.Equal(t, "docharbor-tenant-"+tenant.ID.String(), p.NamespaceName(tenant))
}

func TestProvisionRejectsSecondStore(t *testing.T) {
	p, _, _ := newTestProvisioner()
	tenant := registry.Tenant{ID: uuid.New()}

	desc, err := p.Provision(context.Background(), tenant)
	require.NoError(t, err)

	// A tenant that already carries a descriptor never gets a second store.
	tenant.StoreDSN = desc.DSN
	_, err = p.Provision(context.Background(), tenant)
	require.ErrorIs(t, err, ErrAlreadyProvisioned)

	// Even a stripped record cannot re-create: the backing admin refuses a
	// duplicate database for the same identity.
	tenant.StoreDSN = ""
	_, err = p.Provision(context.Background(), tenant)
	require.ErrorIs(t, err, ErrAlreadyProvisioned)
}

func TestDeprovisionIdempotent(t *testing.T) {
	p, dbs, blobs := newTestProvisioner()
	tenant := registry.Tenant{ID: uuid.New()}

	desc, err := p.Provision(context.Background(), tenant)
	require.NoError(t, err)
	tenant.StoreDSN = desc.DSN
	tenant.BlobNamespace = desc.BlobNamespace

	require.NoError(t, p.Deprovision(context.Background(), tenant))
	require.False(t, dbs.Exists(desc.Database))
	require.False(t, blobs.Exists(desc.BlobNamespace))

	// Dropping already-destroyed resources is not an error.
	require.NoError(t, p.Deprovision(context.Background(), tenant))
}

func TestDeprovisionPartialState(t *testing.T) {
	p, dbs, _ := newTestProvisioner()
	tenant := registry.Tenant{ID: uuid.New()}

	desc, err := p.Provision(context.Background(), tenant)
	require.NoError(t, err)

	// Database already gone, namespace still there: teardown finishes the
	// job without complaint. The namespace falls back to the derived name
	// when the record never captured it.
	require.NoError(t, dbs.DropDatabase(context.Background(), desc.Database))
	require.NoError(t, p.Deprovision(context.Background(), tenant))
}

type failingBlobs struct{}

func (failingBlobs) CreateNamespace(context.Context, string) error {
	return errors.New("bucket quota exceeded")
}
func (failingBlobs) DeleteNamespace(context.Context, string) error { return nil }

func TestProvisionSurfacesNamespaceFailure(t *testing.T) {
	dbs := NewMemoryDatabaseAdmin()
	p := New(dbs, failingBlobs{}, "", zap.NewNop().Sugar())
	tenant := registry.Tenant{ID: uuid.New()}

	_, err := p.Provision(context.Background(), tenant)
	require.Error(t, err)
	require.Contains(t, err.Error(), "create namespace")
	// The database was created before the failure; the caller's cleanup
	// path is responsible for tearing it down.
	require.True(t, dbs.Exists(p.DatabaseName(tenant)))
}
