package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"docharbor/internal/esign"
	"docharbor/pkg/problems"
)

type roleProfileView struct {
	Label        string   `json:"label"`
	Capabilities []string `json:"capabilities"`
}

func (a *App) listRoleProfiles(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	ps, err := a.profiles.List(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]roleProfileView, 0, len(ps))
	for _, p := range ps {
		out = append(out, roleProfileView{Label: p.Label, Capabilities: p.Capabilities.Sorted()})
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) getRoleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	p, err := a.profiles.Get(r.Context(), id, chi.URLParam(r, "label"))
	if err != nil {
		if errors.Is(err, esign.ErrProfileNotFound) {
			problems.Write(w, http.StatusNotFound, "role-not-found", "Role profile not found", "")
			return
		}
		a.writeError(w, err)
		return
	}
	writeJSON(w, roleProfileView{Label: p.Label, Capabilities: p.Capabilities.Sorted()}, http.StatusOK)
}

func (a *App) putRoleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	label := strings.TrimSpace(chi.URLParam(r, "label"))
	if label == "" {
		problems.Write(w, http.StatusBadRequest, "bad-role-label", "Empty role label", "")
		return
	}
	var body struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-json", "Malformed request body", "")
		return
	}
	caps := esign.CapabilitySet{}
	for _, c := range body.Capabilities {
		parsed, err := esign.ParseCapability(c)
		if err != nil {
			problems.Write(w, http.StatusBadRequest, "bad-capability", "Unknown capability", err.Error())
			return
		}
		caps[parsed] = struct{}{}
	}
	p := esign.CustomProfile{TenantID: id, Label: label, Capabilities: caps}
	if err := a.profiles.Put(r.Context(), p); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, roleProfileView{Label: strings.ToLower(label), Capabilities: caps.Sorted()}, http.StatusOK)
}

func (a *App) deleteRoleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	label := chi.URLParam(r, "label")
	if err := a.profiles.Delete(r.Context(), id, label); err != nil {
		if errors.Is(err, esign.ErrProfileNotFound) {
			problems.Write(w, http.StatusNotFound, "role-not-found", "Role profile not found", "")
			return
		}
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
