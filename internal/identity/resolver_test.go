package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.test"
	testAudience = "docharbor"
)

type signer struct {
	private jwk.Key
	public  jwk.Set
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return &signer{private: priv, public: set}
}

// mint signs a token with sensible defaults, letting each case override
// individual claims. A nil value removes the claim.
func (s *signer) mint(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(testIssuer).
		Audience([]string{testAudience}).
		Subject("user-1").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	for k, v := range claims {
		if v == nil {
			continue
		}
		switch k {
		case jwt.IssuerKey:
			b = b.Issuer(v.(string))
		case jwt.AudienceKey:
			b = b.Audience([]string{v.(string)})
		case jwt.ExpirationKey:
			b = b.Expiration(v.(time.Time))
		default:
			b = b.Claim(k, v)
		}
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.private))
	require.NoError(t, err)
	return string(signed)
}

func newTestResolver(t *testing.T, s *signer) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{
		Issuer:     testIssuer,
		Audience:   testAudience,
		StaticKeys: s.public,
	})
	require.NoError(t, err)
	return r
}

func TestResolveTenantUser(t *testing.T) {
	s := newSigner(t)
	r := newTestResolver(t, s)
	tenant := uuid.New()

	tok := s.mint(t, map[string]interface{}{
		"kind": "tenant_user",
		"tid":  tenant.String(),
		"role": "engineering_team_lead",
	})
	p, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, TenantUser, p.Kind)
	require.Equal(t, tenant, p.TenantID)
	require.Equal(t, "user-1", p.Subject)
	require.Equal(t, "engineering_team_lead", p.Role)
}

func TestResolveSystemOperator(t *testing.T) {
	s := newSigner(t)
	r := newTestResolver(t, s)

	tok := s.mint(t, map[string]interface{}{"kind": "system_operator"})
	p, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, SystemOperator, p.Kind)
	require.Equal(t, uuid.Nil, p.TenantID)
}

func TestResolveMalformedClaims(t *testing.T) {
	s := newSigner(t)
	r := newTestResolver(t, s)

	cases := map[string]map[string]interface{}{
		"operator with tenant claim": {
			"kind": "system_operator",
			"tid":  uuid.New().String(),
		},
		"tenant user without tenant claim": {
			"kind": "tenant_user",
		},
		"tenant user with non-uuid tenant": {
			"kind": "tenant_user",
			"tid":  "not-a-uuid",
		},
		"unknown kind": {
			"kind": "superuser",
			"tid":  uuid.New().String(),
		},
		"missing kind": {
			"tid": uuid.New().String(),
		},
	}
	for name, claims := range cases {
		tok := s.mint(t, claims)
		_, err := r.Resolve(context.Background(), tok)
		require.ErrorIs(t, err, ErrMalformedClaims, name)
	}
}

func TestResolveUnauthenticated(t *testing.T) {
	s := newSigner(t)
	r := newTestResolver(t, s)
	tenant := uuid.New().String()

	t.Run("empty token", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("garbage token", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "not.a.jwt")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("expired", func(t *testing.T) {
		tok := s.mint(t, map[string]interface{}{
			"kind":            "tenant_user",
			"tid":             tenant,
			jwt.ExpirationKey: time.Now().Add(-time.Hour),
		})
		_, err := r.Resolve(context.Background(), tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		tok := s.mint(t, map[string]interface{}{
			"kind":        "tenant_user",
			"tid":         tenant,
			jwt.IssuerKey: "https://evil.test",
		})
		_, err := r.Resolve(context.Background(), tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("wrong audience", func(t *testing.T) {
		tok := s.mint(t, map[string]interface{}{
			"kind":            "tenant_user",
			"tid":             tenant,
			jwt.AudienceKey: "someone-else",
		})
		_, err := r.Resolve(context.Background(), tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("wrong key", func(t *testing.T) {
		other := newSigner(t)
		tok := other.mint(t, map[string]interface{}{"kind": "tenant_user", "tid": tenant})
		_, err := r.Resolve(context.Background(), tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestResolveClockSkew(t *testing.T) {
	s := newSigner(t)
	r, err := NewResolver(Options{
		Issuer:     testIssuer,
		Audience:   testAudience,
		StaticKeys: s.public,
		ClockSkew:  2 * time.Minute,
	})
	require.NoError(t, err)

	tok := s.mint(t, map[string]interface{}{
		"kind":            "tenant_user",
		"tid":             uuid.New().String(),
		jwt.ExpirationKey: time.Now().Add(-30 * time.Second),
	})
	_, err = r.Resolve(context.Background(), tok)
	require.NoError(t, err, "a token expired within the skew window is accepted")
}

func TestResolveCustomTenantClaimPath(t *testing.T) {
	s := newSigner(t)
	r, err := NewResolver(Options{
		Issuer:          testIssuer,
		Audience:        testAudience,
		StaticKeys:      s.public,
		TenantClaimPath: "org.tenant_id",
	})
	require.NoError(t, err)
	tenant := uuid.New()

	tok := s.mint(t, map[string]interface{}{
		"kind": "tenant_user",
		"org":  map[string]interface{}{"tenant_id": tenant.String()},
	})
	p, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, tenant, p.TenantID)
}
