package adminapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docharbor/pkg/middleware"
	"docharbor/pkg/openapi"
)

// Handler builds the HTTP handler with routes and middleware. Everything
// under /admin requires a system-operator principal; tenant users never
// reach these handlers.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing("docharbor-admin"))
	r.Use(middleware.RateLimit(a.cfg.RateRPS, a.cfg.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/openapi.json", a.openapiSpec().ServeHandler("docharbor-admin", "1"))

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.Authenticate(a.resolver))
		ar.Use(middleware.RequireOperator())
		ar.Post("/tenants", a.createTenant)
		ar.Get("/tenants", a.listTenants)
		ar.Get("/tenants/{id}", a.getTenant)
		ar.Delete("/tenants/{id}", a.deleteTenant)
		ar.Post("/tenants/{id}/suspend", a.suspendTenant)
		ar.Post("/tenants/{id}/resume", a.resumeTenant)
		ar.Get("/tenants/{id}/roles", a.listRoleProfiles)
		ar.Get("/tenants/{id}/roles/{label}", a.getRoleProfile)
		ar.Put("/tenants/{id}/roles/{label}", a.putRoleProfile)
		ar.Delete("/tenants/{id}/roles/{label}", a.deleteRoleProfile)
		ar.Get("/audit", a.getAudit)
	})

	return r
}

// openapiSpec describes the mounted routes for discovery tooling.
func (a *App) openapiSpec() *openapi.Registry {
	reg := openapi.NewRegistry()
	ops := []openapi.Operation{
		{Method: "POST", Path: "/admin/tenants", Summary: "Create and provision a tenant"},
		{Method: "GET", Path: "/admin/tenants", Summary: "List tenants"},
		{Method: "GET", Path: "/admin/tenants/{id}", Summary: "Fetch one tenant"},
		{Method: "DELETE", Path: "/admin/tenants/{id}", Summary: "Delete a tenant and its store"},
		{Method: "POST", Path: "/admin/tenants/{id}/suspend", Summary: "Suspend routing for a tenant"},
		{Method: "POST", Path: "/admin/tenants/{id}/resume", Summary: "Resume routing for a tenant"},
		{Method: "GET", Path: "/admin/tenants/{id}/roles", Summary: "List custom role profiles"},
		{Method: "GET", Path: "/admin/tenants/{id}/roles/{label}", Summary: "Fetch one custom role profile"},
		{Method: "PUT", Path: "/admin/tenants/{id}/roles/{label}", Summary: "Define or replace a custom role profile"},
		{Method: "DELETE", Path: "/admin/tenants/{id}/roles/{label}", Summary: "Remove a custom role profile"},
		{Method: "GET", Path: "/admin/audit", Summary: "Read the lifecycle audit log"},
	}
	for _, op := range ops {
		op.Tags = []string{"admin"}
		op.Access = "system_operator"
		reg.Register(op)
	}
	return reg
}
