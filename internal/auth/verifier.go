// Package auth verifies bearer tokens guarding the admin endpoints.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Verification modes.
const (
	ModeOff  = "off"
	ModeHMAC = "hmac" // HS256 signed with a shared secret
	ModeJWKS = "jwks" // RS256 with keys from a JWKS URL
)

var (
	// ErrUnauthorized means the request carried no usable credentials.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden means the token is valid but lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
)

// Config selects how tokens are checked.
type Config struct {
	Mode       string `json:"mode"`
	HMACSecret string `json:"hmac_secret"`
	JWKSURL    string `json:"jwks_url"`
	RoleClaim  string `json:"role_claim"`
	AdminRole  string `json:"admin_role"`
}

// Validate checks that the selected mode has what it needs.
func (c Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "", ModeOff:
	case ModeHMAC:
		if c.HMACSecret == "" {
			return errors.New("auth.hmac_secret is required in hmac mode")
		}
	case ModeJWKS:
		if c.JWKSURL == "" {
			return errors.New("auth.jwks_url is required in jwks mode")
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Mode)
	}
	return nil
}

// Principal is the verified caller.
type Principal struct {
	Subject string
	Role    string
}

// Verifier validates JWTs and extracts the role claim.
type Verifier struct {
	mode      string
	secret    []byte
	jwksURL   string
	roleClaim string
	adminRole string
	http      *http.Client
	now       func() time.Time

	mu        sync.RWMutex
	keys      jwks
	lastFetch time.Time
	cacheTTL  time.Duration
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// NewVerifier returns a Verifier for cfg. Mode off accepts every request.
func NewVerifier(cfg Config) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeOff
	}
	v := &Verifier{
		mode:      mode,
		secret:    []byte(cfg.HMACSecret),
		jwksURL:   cfg.JWKSURL,
		roleClaim: cfg.RoleClaim,
		adminRole: cfg.AdminRole,
		http:      &http.Client{Timeout: 5 * time.Second},
		now:       time.Now,
		cacheTTL:  10 * time.Minute,
	}
	if v.roleClaim == "" {
		v.roleClaim = "role"
	}
	if v.adminRole == "" {
		v.adminRole = "admin"
	}
	return v
}

// Enabled reports whether tokens are checked at all.
func (v *Verifier) Enabled() bool { return v != nil && v.mode != ModeOff }

// RequireAdmin checks the Authorization header of r for a token carrying the
// admin role.
func (v *Verifier) RequireAdmin(r *http.Request) (Principal, error) {
	if !v.Enabled() {
		return Principal{Role: "admin"}, nil
	}
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	p, err := v.Verify(strings.TrimSpace(token))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !strings.EqualFold(p.Role, v.adminRole) {
		return p, fmt.Errorf("%w: role %q", ErrForbidden, p.Role)
	}
	return p, nil
}

// Verify checks the signature and expiry of token.
func (v *Verifier) Verify(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	signingInput := []byte(segs[0] + "." + segs[1])
	switch v.mode {
	case ModeHMAC:
		if hdr.Alg != "HS256" {
			return Principal{}, errors.New("unsupported alg for hmac")
		}
		if !hmac.Equal(SignHS256(v.secret, signingInput), sig) {
			return Principal{}, errors.New("bad signature")
		}
	case ModeJWKS:
		if hdr.Alg != "RS256" {
			return Principal{}, errors.New("unsupported alg for jwks")
		}
		pub, err := v.publicKey(hdr.Kid)
		if err != nil {
			return Principal{}, err
		}
		sum := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig); err != nil {
			return Principal{}, errors.New("bad signature")
		}
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.mode)
	}

	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims[v.roleClaim].(string)
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

// SignHS256 returns the raw HS256 signature of input.
func SignHS256(secret, input []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(input)
	return mac.Sum(nil)
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// publicKey returns the RSA key for kid, refreshing the JWKS cache when stale.
func (v *Verifier) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.keys
	stale := v.now().Sub(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.keys
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		// e is big-endian, typically 0x010001
		e := new(big.Int).SetBytes(eBytes)
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
	}
	return nil, fmt.Errorf("kid %q not found in JWKS", kid)
}

func (v *Verifier) fetchJWKS() error {
	req, err := http.NewRequest(http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks: status %d", resp.StatusCode)
	}
	var j jwks
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return err
	}
	v.mu.Lock()
	v.keys = j
	v.lastFetch = v.now()
	v.mu.Unlock()
	return nil
}
