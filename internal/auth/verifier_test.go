package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func signedInput(t *testing.T, hdr, claims map[string]any) string {
	t.Helper()
	h, err := json.Marshal(hdr)
	require.NoError(t, err)
	c, err := json.Marshal(claims)
	require.NoError(t, err)
	return b64(h) + "." + b64(c)
}

func hmacToken(t *testing.T, secret string, claims map[string]any) string {
	in := signedInput(t, map[string]any{"alg": "HS256", "typ": "JWT"}, claims)
	return in + "." + b64(SignHS256([]byte(secret), []byte(in)))
}

func adminRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPut, "/v1/admin/match-config", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestOffModeAcceptsEverything(t *testing.T) {
	v := NewVerifier(Config{})
	assert.False(t, v.Enabled())
	_, err := v.RequireAdmin(adminRequest(""))
	assert.NoError(t, err)
}

func TestHMACRequireAdmin(t *testing.T) {
	v := NewVerifier(Config{Mode: ModeHMAC, HMACSecret: "s3cret"})
	fixed := time.Unix(1_700_000_000, 0)
	v.now = func() time.Time { return fixed }

	p, err := v.RequireAdmin(adminRequest(hmacToken(t, "s3cret", map[string]any{"sub": "ops", "role": "Admin"})))
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "ops", Role: "admin"}, p)

	_, err = v.RequireAdmin(adminRequest(""))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.RequireAdmin(adminRequest(hmacToken(t, "other", map[string]any{"role": "admin"})))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.RequireAdmin(adminRequest(hmacToken(t, "s3cret", map[string]any{"role": "viewer"})))
	assert.ErrorIs(t, err, ErrForbidden)

	expired := hmacToken(t, "s3cret", map[string]any{"role": "admin", "exp": fixed.Add(-time.Minute).Unix()})
	_, err = v.RequireAdmin(adminRequest(expired))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.RequireAdmin(adminRequest("not-a-jwt"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWKSVerify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "k1",
			N:   b64(key.N.Bytes()),
			E:   b64(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := NewVerifier(Config{Mode: ModeJWKS, JWKSURL: srv.URL, RoleClaim: "scope", AdminRole: "dispatch"})
	sign := func(kid string) string {
		in := signedInput(t, map[string]any{"alg": "RS256", "kid": kid}, map[string]any{"sub": "svc", "scope": "dispatch"})
		sum := sha256.Sum256([]byte(in))
		sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
		require.NoError(t, err)
		return in + "." + b64(sig)
	}

	p, err := v.RequireAdmin(adminRequest(sign("k1")))
	require.NoError(t, err)
	assert.Equal(t, "dispatch", p.Role)

	_, err = v.RequireAdmin(adminRequest(sign("k1")))
	require.NoError(t, err)
	assert.Equal(t, 1, fetches, "keys are cached")

	_, err = v.Verify(sign("missing"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Mode: "HMAC", HMACSecret: "x"}.Validate())
	assert.Error(t, Config{Mode: ModeHMAC}.Validate())
	assert.Error(t, Config{Mode: ModeJWKS}.Validate())
	assert.Error(t, Config{Mode: "basic"}.Validate())
}
