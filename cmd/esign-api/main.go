// cmd/esign-api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docharbor/internal/esign"
	"docharbor/internal/esignapi"
	"docharbor/internal/identity"
	"docharbor/internal/registry"
	"docharbor/internal/router"
	"docharbor/pkg/config"
	"docharbor/pkg/db"
	"docharbor/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store registry.Store
	var profiles esign.ProfileStore
	var opener router.Opener
	if pool != nil {
		if err := registry.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("registry schema", "err", err)
		}
		if err := esign.EnsureProfileSchema(context.Background(), pool); err != nil {
			log.Fatalw("profile schema", "err", err)
		}
		store = registry.NewPostgresStore(pool, log)
		profiles = esign.NewPostgresProfileStore(pool)
		opener = router.PgxOpener{}
	} else {
		store = registry.NewMemoryStore()
		profiles = esign.NewMemoryProfileStore()
		opener = router.MemoryOpener{}
	}

	// This service never provisions; lifecycle writes happen in admin-api.
	tenants := registry.NewService(store, nil, rdb, cfg.TenantCacheTTL, log)

	rt := router.New(tenants, opener, router.Options{
		MaxEntries:     cfg.RouterMaxEntries,
		IdleTimeout:    cfg.RouterIdleTimeout,
		SweepInterval:  cfg.RouterSweepInterval,
		ConnectTimeout: cfg.RouterConnectTimeout,
		RetryBudget:    cfg.RouterRetryBudget,
		DrainTimeout:   cfg.RouterDrainTimeout,
	}, log)
	tenants.SetInvalidator(rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)
	go rt.SubscribeInvalidations(ctx, rdb)

	builtins, err := esign.LoadBuiltins(cfg.BuiltinProfilesFile)
	if err != nil {
		log.Fatalw("builtin profiles", "err", err)
	}
	engine := esign.NewEngine(builtins, profiles, tenants, log)

	resolver, err := identity.NewResolver(identity.Options{
		Issuer:          cfg.Issuer,
		Audience:        cfg.Audience,
		JWKSURL:         cfg.JWKSURL,
		TenantClaimPath: cfg.TenantClaimPath,
		ClockSkew:       cfg.ClockSkew,
	})
	if err != nil {
		log.Fatalw("identity resolver", "err", err)
	}

	app := esignapi.New(log, resolver, rt, engine)

	srv := &http.Server{Addr: cfg.ESignAddr, Handler: app.Handler()}
	go func() {
		log.Infow("esign-api listening", "addr", cfg.ESignAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Infow("esign-api stopped")
}
