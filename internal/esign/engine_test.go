package esign

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingSink) RecordInference(_ context.Context, _ uuid.UUID, label, tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, label+"->"+tier)
}

func newTestEngine(t *testing.T) (*Engine, ProfileStore, *recordingSink) {
	t.Helper()
	builtins, err := LoadBuiltins("")
	require.NoError(t, err)
	store := NewMemoryProfileStore()
	sink := &recordingSink{}
	return NewEngine(builtins, store, sink, zap.NewNop().Sugar()), store, sink
}

func TestResolveBuiltinExactMatch(t *testing.T) {
	eng, _, sink := newTestEngine(t)
	tenant := uuid.New()

	for _, label := range []string{"admin", "Admin", "MANAGER", "staff", "external"} {
		p, err := eng.ResolveProfile(context.Background(), tenant, label)
		require.NoError(t, err)
		require.Equal(t, SourceBuiltin, p.Source, "label %q", label)
	}
	require.Empty(t, sink.entries, "builtin matches must not be audited as inferences")
}

func TestResolveCustomBeatsInference(t *testing.T) {
	eng, store, sink := newTestEngine(t)
	tenant := uuid.New()

	// "contract_admin" classifies as admin-tier; the custom profile pins it
	// down to something far narrower and must win.
	require.NoError(t, store.Put(context.Background(), CustomProfile{
		TenantID:     tenant,
		Label:        "contract_admin",
		Capabilities: NewCapabilitySet(CapView, CapDownload),
	}))

	p, err := eng.ResolveProfile(context.Background(), tenant, "contract_admin")
	require.NoError(t, err)
	require.Equal(t, SourceCustom, p.Source)
	require.True(t, p.Capabilities.Has(CapView))
	require.False(t, p.Capabilities.Has(CapManage))
	require.Empty(t, sink.entries)

	// Another tenant with no such profile falls through to inference.
	other := uuid.New()
	p, err = eng.ResolveProfile(context.Background(), other, "contract_admin")
	require.NoError(t, err)
	require.Equal(t, SourceInferred, p.Source)
	require.Equal(t, TierAdmin, p.Tier)
	require.Equal(t, []string{"contract_admin->admin"}, sink.entries)
}

func TestInferredCopiesTierSet(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	tenant := uuid.New()

	p, err := eng.ResolveProfile(context.Background(), tenant, "engineering_team_lead")
	require.NoError(t, err)
	require.Equal(t, SourceInferred, p.Source)
	require.Equal(t, TierManager, p.Tier)

	manager, ok := eng.builtins.Lookup("manager")
	require.True(t, ok)
	require.ElementsMatch(t, manager.Capabilities.Sorted(), p.Capabilities.Sorted(),
		"inferred profile must copy the tier set verbatim")
}

func TestInferredNeverEscalates(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	tenant := uuid.New()
	admin := eng.builtins.ForTier(TierAdmin)

	for _, label := range []string{
		"office_manager", "field_agent", "guest_signer", "zzz_unmatched",
		"regional_director", "account_owner", "support_staff", "client_liaison",
	} {
		p, err := eng.ResolveProfile(context.Background(), tenant, label)
		require.NoError(t, err)
		require.Equal(t, SourceInferred, p.Source)
		require.True(t, p.Capabilities.SubsetOf(admin.Capabilities), "label %q", label)
		require.ElementsMatch(t,
			eng.builtins.ForTier(p.Tier).Capabilities.Sorted(),
			p.Capabilities.Sorted(),
			"label %q grew beyond its tier", label)
	}
}

func TestResolveEmptyLabel(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.ResolveProfile(context.Background(), uuid.New(), "")
	require.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	tenant := uuid.New()

	ok, err := eng.Authorize(context.Background(), tenant, "staff", CapSign)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = eng.Authorize(context.Background(), tenant, "staff", CapManage)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = eng.Authorize(context.Background(), tenant, "guest_signer", CapView)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = eng.Authorize(context.Background(), tenant, "guest_signer", CapBulkSend)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClassifyDeterministic(t *testing.T) {
	cases := map[string]Tier{
		"engineering_team_lead": TierManager,
		"EnGiNeErInG_TeAm_LeAd": TierManager,
		"site-administrator":    TierAdmin,
		"Account Owner":         TierAdmin,
		"support_staff":         TierStaff,
		"power user":            TierStaff,
		"external_counsel":      TierExternal,
		"guest":                 TierExternal,
		"quux":                  TierExternal,
		// admin family outranks the manager family even when both match
		"admin_manager": TierAdmin,
	}
	for label, want := range cases {
		for i := 0; i < 3; i++ {
			require.Equal(t, want, Classify(label), "label %q", label)
		}
	}
}

func TestBuiltinTiersAreStrictChain(t *testing.T) {
	builtins, err := LoadBuiltins("")
	require.NoError(t, err)
	for i := 1; i < len(tierOrder); i++ {
		lower := builtins.ForTier(tierOrder[i]).Capabilities
		upper := builtins.ForTier(tierOrder[i-1]).Capabilities
		require.True(t, lower.SubsetOf(upper), "%s ⊄ %s", tierOrder[i], tierOrder[i-1])
		require.Less(t, len(lower), len(upper), "%s must be strictly smaller than %s", tierOrder[i], tierOrder[i-1])
	}
}

func TestLoadBuiltinsFromFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
version: 2
profiles:
  admin: [create, send, view, cancel, sign, download, manage, approve, workflow_create, workflow_manage, bulk_send, audit_view]
  manager: [create, send, view, sign, download, approve]
  staff: [create, send, view, sign]
  external: [view, sign]
`), 0o600))
	tbl, err := LoadBuiltins(good)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Version)
	p, ok := tbl.Lookup("manager")
	require.True(t, ok)
	require.True(t, p.Capabilities.Has(CapApprove))
	require.False(t, p.Capabilities.Has(CapBulkSend))

	// Missing tier.
	missing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missing, []byte(`
version: 2
profiles:
  admin: [view]
  manager: [view]
  staff: [view]
`), 0o600))
	_, err = LoadBuiltins(missing)
	require.ErrorContains(t, err, "missing tier")

	// Containment violation: staff grants something manager lacks.
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
version: 2
profiles:
  admin: [view, sign, manage]
  manager: [view, sign]
  staff: [view, bulk_send]
  external: [view]
`), 0o600))
	_, err = LoadBuiltins(broken)
	require.ErrorContains(t, err, "not a subset")

	// Unknown capability name.
	bogus := filepath.Join(dir, "bogus.yaml")
	require.NoError(t, os.WriteFile(bogus, []byte(`
version: 2
profiles:
  admin: [teleport]
  manager: []
  staff: []
  external: []
`), 0o600))
	_, err = LoadBuiltins(bogus)
	require.ErrorContains(t, err, "unknown capability")
}

func TestMemoryProfileStoreRoundTrip(t *testing.T) {
	store := NewMemoryProfileStore()
	tenant := uuid.New()
	ctx := context.Background()

	_, err := store.Get(ctx, tenant, "notary")
	require.ErrorIs(t, err, ErrProfileNotFound)

	require.NoError(t, store.Put(ctx, CustomProfile{
		TenantID:     tenant,
		Label:        "Notary",
		Capabilities: NewCapabilitySet(CapView, CapSign),
	}))

	p, err := store.Get(ctx, tenant, "NOTARY")
	require.NoError(t, err)
	require.True(t, p.Capabilities.Has(CapSign))

	list, err := store.List(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, tenant, "notary"))
	require.ErrorIs(t, store.Delete(ctx, tenant, "notary"), ErrProfileNotFound)
}
