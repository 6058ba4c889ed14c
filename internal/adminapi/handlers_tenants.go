package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docharbor/internal/registry"
	"docharbor/pkg/middleware"
	"docharbor/pkg/problems"
)

type tenantView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContactEmail   string `json:"contact_email,omitempty"`
	BlobNamespace  string `json:"blob_namespace,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	LastVerifiedAt string `json:"last_verified_at,omitempty"`
}

// The store descriptor stays server-side: it carries credential material.
func viewOf(t registry.Tenant) tenantView {
	v := tenantView{
		ID:            t.ID.String(),
		Name:          t.Name,
		ContactEmail:  t.ContactEmail,
		BlobNamespace: t.BlobNamespace,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
	if !t.LastVerifiedAt.IsZero() && t.LastVerifiedAt.Unix() > 0 {
		v.LastVerifiedAt = t.LastVerifiedAt.Format(time.RFC3339)
	}
	return v
}

func (a *App) createTenant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string `json:"name"`
		ContactEmail string `json:"contact_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-json", "Malformed request body", "")
		return
	}
	t, err := a.tenants.CreateTenant(r.Context(), body.Name, body.ContactEmail, actorFrom(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, viewOf(t), http.StatusCreated)
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	ts, err := a.tenants.ListTenants(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]tenantView, 0, len(ts))
	for _, t := range ts {
		out = append(out, viewOf(t))
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) getTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := a.tenants.GetTenant(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, viewOf(t), http.StatusOK)
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if err := a.tenants.DeleteTenant(r.Context(), id, actorFrom(r)); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) suspendTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if err := a.tenants.SuspendTenant(r.Context(), id, actorFrom(r)); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) resumeTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if err := a.tenants.ResumeTenant(r.Context(), id, actorFrom(r)); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) getAudit(w http.ResponseWriter, r *http.Request) {
	var tid *uuid.UUID
	if q := r.URL.Query().Get("tenant"); q != "" {
		id, err := uuid.Parse(q)
		if err != nil {
			problems.Write(w, http.StatusBadRequest, "bad-tenant-id", "Invalid tenant id", "")
			return
		}
		tid = &id
	}
	entries, err := a.tenants.Audit(r.Context(), tid, 200)
	if err != nil {
		a.writeError(w, err)
		return
	}
	type auditView struct {
		TenantID string `json:"tenant_id"`
		Op       string `json:"op"`
		Actor    string `json:"actor,omitempty"`
		Outcome  string `json:"outcome"`
		Detail   string `json:"detail,omitempty"`
		At       string `json:"at"`
	}
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView{
			TenantID: e.TenantID.String(), Op: e.Op, Actor: e.Actor,
			Outcome: e.Outcome, Detail: e.Detail, At: e.At.Format(time.RFC3339),
		})
	}
	writeJSON(w, out, http.StatusOK)
}

func tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-tenant-id", "Invalid tenant id", "")
		return uuid.UUID{}, false
	}
	return id, true
}

func actorFrom(r *http.Request) string {
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		return p.Subject
	}
	return ""
}

// writeError maps registry errors for the operator surface. Operators see
// the precise error kind.
func (a *App) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		problems.Write(w, http.StatusNotFound, "tenant-not-found", "Tenant not found", "")
	case errors.Is(err, registry.ErrConflict):
		problems.Write(w, http.StatusConflict, "conflict", "Conflict", err.Error())
	case errors.Is(err, registry.ErrProvision):
		problems.Write(w, http.StatusBadGateway, "provision-failed", "Provisioning failed", err.Error())
	default:
		a.log.Errorw("admin handler", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
	}
}
