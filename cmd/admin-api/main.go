// cmd/admin-api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docharbor/internal/adminapi"
	"docharbor/internal/esign"
	"docharbor/internal/identity"
	"docharbor/internal/provision"
	"docharbor/internal/registry"
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
	var dbs provision.DatabaseAdmin
	var blobs provision.BlobNamespaces
	if pool != nil {
		if err := registry.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("registry schema", "err", err)
		}
		if err := esign.EnsureProfileSchema(context.Background(), pool); err != nil {
			log.Fatalw("profile schema", "err", err)
		}
		store = registry.NewPostgresStore(pool, log)
		profiles = esign.NewPostgresProfileStore(pool)
		dbs = provision.NewPostgresAdmin(cfg.AdminDSN, log)
		s3ns, err := provision.NewS3Namespaces(context.Background(), cfg.BlobEndpoint, log)
		if err != nil {
			log.Fatalw("blob namespaces", "err", err)
		}
		blobs = s3ns
	} else {
		store = registry.NewMemoryStore()
		profiles = esign.NewMemoryProfileStore()
		dbs = provision.NewMemoryDatabaseAdmin()
		blobs = provision.NewMemoryBlobNamespaces()
	}

	prov := provision.New(dbs, blobs, cfg.BlobBucketPrefix, log)
	tenants := registry.NewService(store, prov, rdb, cfg.TenantCacheTTL, log)

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

	app := adminapi.New(log, tenants, profiles, resolver, adminapi.Config{
		RateRPS:   cfg.AdminRateRPS,
		RateBurst: cfg.AdminRateBurst,
	})

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: app.Handler()}
	go func() {
		log.Infow("admin-api listening", "addr", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Infow("admin-api stopped")
}
