package esignapi

import (
	"go.uber.org/zap"

	"docharbor/internal/esign"
	"docharbor/internal/identity"
	"docharbor/internal/router"
)

// App is the tenant-scoped e-signature surface. Every request flows
// identity -> connection router -> permission engine; the store handle is
// acquired and released within the request.
type App struct {
	log      *zap.SugaredLogger
	resolver *identity.Resolver
	router   *router.Router
	engine   *esign.Engine
}

func New(log *zap.SugaredLogger, resolver *identity.Resolver, rt *router.Router, engine *esign.Engine) *App {
	return &App{log: log, resolver: resolver, router: rt, engine: engine}
}
