package esignapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"docharbor/internal/esign"
	"docharbor/internal/router"
	"docharbor/pkg/middleware"
	"docharbor/pkg/problems"
)

// getCapabilities returns the caller's resolved capability set. The store
// handle is resolved first so a suspended or unreachable tenant fails the
// request before any capability leaks out.
func (a *App) getCapabilities(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	h, err := a.router.Resolve(r.Context(), p.TenantID)
	if err != nil {
		a.writeRouteError(w, err)
		return
	}
	defer h.Release()

	profile, err := a.engine.ResolveProfile(r.Context(), p.TenantID, p.Role)
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-role", "Unresolvable role", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"role":         profile.Label,
		"source":       string(profile.Source),
		"capabilities": profile.Capabilities.Sorted(),
	})
}

func (a *App) postAuthorize(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	var body struct {
		Capability string `json:"capability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-json", "Malformed request body", "")
		return
	}
	cap, err := esign.ParseCapability(body.Capability)
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-capability", "Unknown capability", err.Error())
		return
	}

	h, err := a.router.Resolve(r.Context(), p.TenantID)
	if err != nil {
		a.writeRouteError(w, err)
		return
	}
	defer h.Release()

	ok, err := a.engine.Authorize(r.Context(), p.TenantID, p.Role, cap)
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-role", "Unresolvable role", err.Error())
		return
	}
	if !ok {
		problems.Write(w, http.StatusForbidden, "capability-denied", "Capability denied",
			"Role "+p.Role+" does not grant "+string(cap))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeRouteError maps router errors for tenant-level callers. Account
// state is reported precisely; infrastructure failures collapse into a
// generic unavailable so topology never leaks to tenants.
func (a *App) writeRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, router.ErrTenantNotFound):
		problems.Write(w, http.StatusForbidden, "tenant-unknown", "Tenant not available", "")
	case errors.Is(err, router.ErrTenantInactive):
		problems.Write(w, http.StatusForbidden, "tenant-inactive", "Tenant not active", "")
	default:
		a.log.Warnw("store routing failed", "err", err)
		problems.Unavailable(w)
	}
}
