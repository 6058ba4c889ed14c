package adminapi

import (
	"go.uber.org/zap"

	"docharbor/internal/esign"
	"docharbor/internal/identity"
	"docharbor/internal/registry"
)

// Config holds admin-api specific configuration.
type Config struct {
	RateRPS   float64
	RateBurst int
}

// App is the admin-api application container: the system-operator surface
// over the tenant registry and the custom role profiles.
//
// Keep it lean: shared deps and config only. Request-scoped work should
// use context.
type App struct {
	log      *zap.SugaredLogger
	tenants  *registry.Service
	profiles esign.ProfileStore
	resolver *identity.Resolver
	cfg      Config
}

func New(log *zap.SugaredLogger, tenants *registry.Service, profiles esign.ProfileStore, resolver *identity.Resolver, cfg Config) *App {
	return &App{log: log, tenants: tenants, profiles: profiles, resolver: resolver, cfg: cfg}
}
