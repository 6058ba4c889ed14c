package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docharbor/internal/esign"
)

func roleRequest(tenant uuid.UUID, label string) *http.Request {
	req := httptest.NewRequest(http.MethodGet,
		"/admin/tenants/"+tenant.String()+"/roles/"+label, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", tenant.String())
	rctx.URLParams.Add("label", label)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetRoleProfile(t *testing.T) {
	profiles := esign.NewMemoryProfileStore()
	tenant := uuid.New()
	require.NoError(t, profiles.Put(context.Background(), esign.CustomProfile{
		TenantID:     tenant,
		Label:        "notary",
		Capabilities: esign.NewCapabilitySet(esign.CapView, esign.CapSign),
	}))
	app := New(zap.NewNop().Sugar(), nil, profiles, nil, Config{})

	rec := httptest.NewRecorder()
	app.getRoleProfile(rec, roleRequest(tenant, "notary"))
	require.Equal(t, http.StatusOK, rec.Code)

	var v roleProfileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Equal(t, "notary", v.Label)
	require.Equal(t, []string{"sign", "view"}, v.Capabilities)
}

func TestGetRoleProfileNotFound(t *testing.T) {
	app := New(zap.NewNop().Sugar(), nil, esign.NewMemoryProfileStore(), nil, Config{})

	rec := httptest.NewRecorder()
	app.getRoleProfile(rec, roleRequest(uuid.New(), "notary"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
