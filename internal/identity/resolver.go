package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmespath/go-jmespath"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrUnauthenticated covers invalid signature, wrong issuer/audience,
	// and expired credentials.
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	// ErrMalformedClaims covers privilege-confusion shapes: a tenant user
	// without a tenant claim, or an operator carrying one.
	ErrMalformedClaims = errors.New("identity: malformed claims")
)

const (
	kindClaim = "kind"
	roleClaim = "role"
)

// Options configure credential validation. StaticKeys bypasses JWKS
// fetching and is intended for tests and single-key deployments.
type Options struct {
	Issuer          string
	Audience        string
	JWKSURL         string
	StaticKeys      jwk.Set
	TenantClaimPath string // JMESPath into the token's claims, default "tid"
	ClockSkew       time.Duration
	JWKSTTL         time.Duration
}

// Resolver validates bearer credentials and derives a Principal from the
// credential's own claims. It is the single point where tenant context
// enters the system.
type Resolver struct {
	opts  Options
	cache *jwksCache
	path  *jmespath.JMESPath
}

func NewResolver(opts Options) (*Resolver, error) {
	if opts.TenantClaimPath == "" {
		opts.TenantClaimPath = "tid"
	}
	if opts.JWKSTTL == 0 {
		opts.JWKSTTL = 6 * time.Hour
	}
	p, err := jmespath.Compile(opts.TenantClaimPath)
	if err != nil {
		return nil, fmt.Errorf("identity: compile tenant claim path %q: %w", opts.TenantClaimPath, err)
	}
	return &Resolver{opts: opts, cache: &jwksCache{}, path: p}, nil
}

// Resolve validates the raw bearer token and constructs the Principal.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrUnauthenticated
	}
	set := r.opts.StaticKeys
	if set == nil {
		if r.opts.JWKSURL == "" {
			return Principal{}, fmt.Errorf("identity: jwks not configured: %w", ErrUnauthenticated)
		}
		var err error
		set, err = r.cache.get(ctx, r.opts.JWKSURL, r.opts.JWKSTTL)
		if err != nil {
			return Principal{}, fmt.Errorf("identity: jwks fetch: %w", ErrUnauthenticated)
		}
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithVerify(true),
		jwt.WithAcceptableSkew(r.opts.ClockSkew),
	}
	if r.opts.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(strings.TrimRight(r.opts.Issuer, "/")))
	}
	if r.opts.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(r.opts.Audience))
	}
	jt, err := jwt.Parse([]byte(raw), parseOpts...)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return r.principalFrom(jt)
}

func (r *Resolver) principalFrom(jt jwt.Token) (Principal, error) {
	claims := jt.PrivateClaims()

	kind := stringClaim(claims, kindClaim)
	tenantRaw, _ := r.path.Search(claims)
	tenantStr, _ := tenantRaw.(string)

	p := Principal{Subject: jt.Subject(), Role: stringClaim(claims, roleClaim)}

	switch Kind(kind) {
	case SystemOperator:
		if tenantStr != "" {
			// An operator credential must not carry tenant context.
			return Principal{}, ErrMalformedClaims
		}
		p.Kind = SystemOperator
		return p, nil
	case TenantUser:
		if tenantStr == "" {
			return Principal{}, ErrMalformedClaims
		}
		id, err := uuid.Parse(tenantStr)
		if err != nil {
			return Principal{}, ErrMalformedClaims
		}
		p.Kind = TenantUser
		p.TenantID = id
		return p, nil
	default:
		return Principal{}, ErrMalformedClaims
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
