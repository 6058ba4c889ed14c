// internal/esign/engine.go
package esign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditSink records fallback classifications so operators can promote a
// recurring label to an explicit custom profile. Satisfied by
// *registry.Service.
type AuditSink interface {
	RecordInference(ctx context.Context, tenantID uuid.UUID, label, tier string)
}

// Engine resolves role labels to capability profiles. Resolution order is
// fixed: builtin exact match, then the tenant's custom profiles, then
// keyword classification onto the nearest builtin tier. An inferred
// profile copies the matched tier's set verbatim — never a union, never an
// escalation.
type Engine struct {
	builtins *BuiltinTable
	custom   ProfileStore
	audit    AuditSink
	log      *zap.SugaredLogger
}

func NewEngine(builtins *BuiltinTable, custom ProfileStore, audit AuditSink, log *zap.SugaredLogger) *Engine {
	return &Engine{builtins: builtins, custom: custom, audit: audit, log: log}
}

// ResolveProfile maps a role label to its capability profile for one
// tenant. Free-form labels stop here: callers only ever see a Profile.
func (e *Engine) ResolveProfile(ctx context.Context, tenantID uuid.UUID, label string) (Profile, error) {
	if label == "" {
		return Profile{}, fmt.Errorf("esign: empty role label")
	}
	if p, ok := e.builtins.Lookup(label); ok {
		p.Label = label
		return p, nil
	}
	cp, err := e.custom.Get(ctx, tenantID, label)
	if err == nil {
		return Profile{Label: label, Source: SourceCustom, Capabilities: cp.Capabilities.Clone()}, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return Profile{}, err
	}

	tier := Classify(label)
	base := e.builtins.ForTier(tier)
	if e.audit != nil {
		e.audit.RecordInference(ctx, tenantID, label, string(tier))
	}
	e.log.Infow("role label inferred", "tenant", tenantID, "label", label, "tier", tier)
	return Profile{Label: label, Source: SourceInferred, Tier: tier, Capabilities: base.Capabilities.Clone()}, nil
}

// Authorize resolves the label and checks capability membership. Pure
// apart from the audit entry written on fallback classification.
func (e *Engine) Authorize(ctx context.Context, tenantID uuid.UUID, label string, cap Capability) (bool, error) {
	p, err := e.ResolveProfile(ctx, tenantID, label)
	if err != nil {
		return false, err
	}
	return p.Capabilities.Has(cap), nil
}
