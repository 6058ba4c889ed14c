package openapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Operation describes one HTTP operation surfaced in the service's OpenAPI
// document. Operations are registered statically at router construction so
// the document always matches the mounted routes.
type Operation struct {
	Method      string
	Path        string
	Summary     string
	Description string
	Tags        []string
	// Access names the credential kind the route requires
	// (system_operator or tenant_user).
	Access      string
	RequestBody any
	Responses   map[string]any
}

// Registry collects a service's operations and renders them as OpenAPI 3.1.
type Registry struct {
	ops []Operation
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(op Operation) {
	op.Method = strings.ToLower(op.Method)
	if op.Responses == nil {
		op.Responses = map[string]any{"200": map[string]any{"description": "OK"}}
	}
	r.ops = append(r.ops, op)
}

// Build produces a minimal OpenAPI 3.1 document for the registered
// operations. Schemas stay inline; the document exists for discovery and
// tooling, not codegen.
func (r *Registry) Build(serviceName, version string) map[string]any {
	paths := map[string]any{}
	for _, op := range r.ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"summary":   op.Summary,
			"responses": op.Responses,
		}
		if op.Description != "" {
			m["description"] = op.Description
		}
		if len(op.Tags) > 0 {
			m["tags"] = op.Tags
		}
		if op.Access != "" {
			m["x-required-credential"] = op.Access
		}
		if op.RequestBody != nil {
			m["requestBody"] = op.RequestBody
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
					"description":  "Issued by the platform identity provider; the kind claim selects operator or tenant access.",
				},
			},
		},
		"security": []map[string]any{{"bearer": []string{}}},
	}
}

// ServeHandler serves the built document as JSON.
func (r *Registry) ServeHandler(serviceName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Build(serviceName, version))
	}
}
