package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvisioner hands out unique descriptors and can be told to fail.
type fakeProvisioner struct {
	mu            sync.Mutex
	provisionErr  error
	provisioned   map[uuid.UUID]bool
	deprovisioned map[uuid.UUID]bool
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		provisioned:   map[uuid.UUID]bool{},
		deprovisioned: map[uuid.UUID]bool{},
	}
}

func (f *fakeProvisioner) Provision(_ context.Context, t Tenant) (StoreDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.provisionErr != nil {
		return StoreDescriptor{}, f.provisionErr
	}
	f.provisioned[t.ID] = true
	return StoreDescriptor{
		DSN:           "memory://tenant_" + t.ID.String(),
		Database:      "tenant_" + t.ID.String(),
		BlobNamespace: "docharbor-tenant-" + t.ID.String(),
	}, nil
}

func (f *fakeProvisioner) Deprovision(_ context.Context, t Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deprovisioned[t.ID] = true
	return nil
}

type fakeInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (f *fakeInvalidator) Invalidate(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func newTestService() (*Service, Store, *fakeProvisioner) {
	store := NewMemoryStore()
	prov := newFakeProvisioner()
	svc := NewService(store, prov, nil, 0, zap.NewNop().Sugar())
	return svc, store, prov
}

func TestCreateTenantRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, "Acme Legal", "ops@acme.test", "operator-1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.NotEmpty(t, created.StoreDSN)
	require.NotEmpty(t, created.BlobNamespace)

	got, err := svc.GetTenant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Acme Legal", got.Name)
	require.Equal(t, created.StoreDSN, got.StoreDSN)

	entries, err := svc.Audit(ctx, &created.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestCreateTenantEmptyName(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateTenant(context.Background(), "   ", "", "operator-1")
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateTenantProvisionFailure(t *testing.T) {
	svc, store, prov := newTestService()
	ctx := context.Background()
	prov.provisionErr = errors.New("quota exceeded")

	_, err := svc.CreateTenant(ctx, "Doomed Inc", "", "operator-1")
	require.ErrorIs(t, err, ErrProvision)

	// The record must not be stranded in provisioning.
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEqual(t, StatusProvisioning, list[0].Status)
	require.Equal(t, StatusDeleted, list[0].Status)
	require.True(t, prov.deprovisioned[list[0].ID], "cleanup must be attempted")
}

func TestConcurrentCreatesGetDistinctDescriptors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	tenants := make([]Tenant, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tenants[i], errs[i] = svc.CreateTenant(ctx, fmt.Sprintf("tenant-%d", i), "", "operator-1")
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.False(t, seen[tenants[i].StoreDSN], "descriptor %q reused", tenants[i].StoreDSN)
		seen[tenants[i].StoreDSN] = true
	}
}

func TestDeleteTenant(t *testing.T) {
	svc, _, prov := newTestService()
	inv := &fakeInvalidator{}
	svc.SetInvalidator(inv)
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, "Ephemeral", "", "operator-1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTenant(ctx, created.ID, "operator-1"))
	got, err := svc.GetTenant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, got.Status)
	require.True(t, prov.deprovisioned[created.ID])
	require.Contains(t, inv.ids, created.ID, "delete must evict cached connections")

	// Deleting again is a no-op.
	require.NoError(t, svc.DeleteTenant(ctx, created.ID, "operator-1"))

	require.ErrorIs(t, func() error {
		_, err := svc.GetTenant(ctx, uuid.New())
		return err
	}(), ErrNotFound)
}

func TestSuspendResume(t *testing.T) {
	svc, _, _ := newTestService()
	inv := &fakeInvalidator{}
	svc.SetInvalidator(inv)
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, "Pausable", "", "operator-1")
	require.NoError(t, err)

	require.NoError(t, svc.SuspendTenant(ctx, created.ID, "operator-1"))
	got, err := svc.GetTenant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, got.Status)
	require.Contains(t, inv.ids, created.ID, "suspend must evict cached connections")

	// Suspending twice conflicts; resuming restores routing.
	require.ErrorIs(t, svc.SuspendTenant(ctx, created.ID, "operator-1"), ErrConflict)
	require.NoError(t, svc.ResumeTenant(ctx, created.ID, "operator-1"))
	got, err = svc.GetTenant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status)

	require.ErrorIs(t, svc.ResumeTenant(ctx, created.ID, "operator-1"), ErrConflict)
}

func TestAuditTrailCoversLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, "Audited", "", "operator-1")
	require.NoError(t, err)
	require.NoError(t, svc.SuspendTenant(ctx, created.ID, "operator-1"))
	require.NoError(t, svc.ResumeTenant(ctx, created.ID, "operator-1"))
	svc.RecordInference(ctx, created.ID, "engineering_team_lead", "manager")

	entries, err := svc.Audit(ctx, &created.ID, 100)
	require.NoError(t, err)

	ops := map[string]int{}
	for _, e := range entries {
		require.Equal(t, created.ID, e.TenantID)
		ops[e.Op]++
	}
	require.NotZero(t, ops["tenant_create"])
	require.NotZero(t, ops["tenant_activate"])
	require.GreaterOrEqual(t, ops["tenant_status"], 2)
	require.Equal(t, 1, ops["role_inferred"])
}

func TestMemoryStoreRejectsDescriptorReuse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := Tenant{ID: uuid.New(), Name: "a", Status: StatusProvisioning}
	b := Tenant{ID: uuid.New(), Name: "b", Status: StatusProvisioning}
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))

	desc := StoreDescriptor{DSN: "memory://shared", Database: "shared", BlobNamespace: "ns"}
	require.NoError(t, store.Activate(ctx, a.ID, desc))
	require.ErrorIs(t, store.Activate(ctx, b.ID, desc), ErrConflict)
}
