// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	AdminAddr string // admin-api
	ESignAddr string // esign-api

	// OIDC / JWT
	Issuer          string
	Audience        string
	JWKSURL         string
	TenantClaimPath string // JMESPath into token claims for the tenant id
	ClockSkew       time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string // registry database
	AdminDSN    string // elevated DSN used to CREATE/DROP tenant databases

	// Blob namespaces (object storage)
	BlobBucketPrefix string
	BlobEndpoint     string // optional custom S3 endpoint (minio etc.)

	// Tenant record cache
	TenantCacheTTL time.Duration

	// Connection router tuning. All bounded; override per deployment.
	RouterMaxEntries     int
	RouterIdleTimeout    time.Duration
	RouterSweepInterval  time.Duration
	RouterConnectTimeout time.Duration
	RouterRetryBudget    int
	RouterDrainTimeout   time.Duration

	// Admin surface rate limit
	AdminRateRPS   float64
	AdminRateBurst int

	// Optional YAML override for the builtin role profile table
	BuiltinProfilesFile string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("DOCHARBOR_ENV", "dev"),
		AdminAddr:            env("DOCHARBOR_ADMIN_ADDR", ":8080"),
		ESignAddr:            env("DOCHARBOR_ESIGN_ADDR", ":8081"),
		Issuer:               env("OIDC_ISSUER", ""),
		Audience:             env("OIDC_AUDIENCE", "docharbor"),
		JWKSURL:              env("JWKS_URL", ""),
		TenantClaimPath:      env("TENANT_CLAIM_PATH", "tid"),
		ClockSkew:            envDur("JWT_CLOCK_SKEW_SEC", 60) * time.Second,
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
		AdminDSN:             env("PROVISIONER_ADMIN_DSN", ""),
		BlobBucketPrefix:     env("BLOB_BUCKET_PREFIX", "docharbor-tenant"),
		BlobEndpoint:         env("BLOB_ENDPOINT", ""),
		TenantCacheTTL:       envDur("TENANT_CACHE_TTL_SEC", 30) * time.Second,
		RouterMaxEntries:     envInt("ROUTER_MAX_ENTRIES", 256),
		RouterIdleTimeout:    envDur("ROUTER_IDLE_TIMEOUT_SEC", 300) * time.Second,
		RouterSweepInterval:  envDur("ROUTER_SWEEP_INTERVAL_SEC", 30) * time.Second,
		RouterConnectTimeout: envDur("ROUTER_CONNECT_TIMEOUT_SEC", 5) * time.Second,
		RouterRetryBudget:    envInt("ROUTER_RETRY_BUDGET", 2),
		RouterDrainTimeout:   envDur("ROUTER_DRAIN_TIMEOUT_SEC", 10) * time.Second,
		AdminRateRPS:         envFloat("ADMIN_RATE_RPS", 20),
		AdminRateBurst:       envInt("ADMIN_RATE_BURST", 40),
		BuiltinProfilesFile:  env("BUILTIN_PROFILES_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory registry and stores for dev")
	}
	if cfg.AdminDSN == "" {
		cfg.AdminDSN = cfg.DatabaseURL
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
