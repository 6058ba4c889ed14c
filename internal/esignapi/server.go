package esignapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docharbor/pkg/middleware"
	"docharbor/pkg/openapi"
)

func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing("docharbor-esign"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/openapi.json", a.openapiSpec().ServeHandler("docharbor-esign", "1"))

	r.Route("/v1", func(vr chi.Router) {
		vr.Use(middleware.Authenticate(a.resolver))
		vr.Use(middleware.RequireTenantUser())
		vr.Get("/capabilities", a.getCapabilities)
		vr.Post("/authorize", a.postAuthorize)
	})

	return r
}

func (a *App) openapiSpec() *openapi.Registry {
	reg := openapi.NewRegistry()
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/v1/capabilities", Tags: []string{"esign"},
		Summary: "Resolve the caller's capability profile",
		Access:  "tenant_user",
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/v1/authorize", Tags: []string{"esign"},
		Summary: "Check one capability for the caller's role",
		Access:  "tenant_user",
	})
	return reg
}
