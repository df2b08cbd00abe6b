// Package auth verifies bearer tokens and resolves the caller's access tier.
package auth

import (
	"context"
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

	"tripnav/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	Mode       string // dev, hmac or jwks
	HMACSecret string
	JWKSURL    string
	TierClaim  string
}

// Verifier validates bearer tokens.
// Modes: dev (token is the tier name), hmac (HS256), jwks (RS256 from a JWKS URL).
type Verifier struct {
	mode       string
	hmacSecret []byte
	jwksURL    string
	tierClaim  string
	http       *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	jwks      jwks
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
	Alg string `json:"alg"`
}

type Principal struct {
	Subject string
	Tier    model.Tier
}

var Anonymous = Principal{Tier: model.TierAnonymous}

func New(cfg Config) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "dev"
	}
	claim := cfg.TierClaim
	if claim == "" {
		claim = "tier"
	}
	return &Verifier{
		mode:       mode,
		hmacSecret: []byte(cfg.HMACSecret),
		jwksURL:    cfg.JWKSURL,
		tierClaim:  claim,
		http:       &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
		cacheTTL:   10 * time.Minute,
	}
}

func (v *Verifier) Mode() string { return v.mode }

// Resolve maps an Authorization header to a principal. Missing or invalid
// credentials resolve to the anonymous tier.
func (v *Verifier) Resolve(ctx context.Context, authorization string) Principal {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return Anonymous
	}
	p, err := v.Verify(ctx, strings.TrimSpace(token))
	if err != nil {
		return Anonymous
	}
	return p
}

func (v *Verifier) Verify(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidToken
	}
	if v.mode == "dev" {
		tier := model.ParseTier(strings.ToLower(token))
		if tier == model.TierAnonymous && token != string(model.TierAnonymous) {
			return Principal{}, fmt.Errorf("%w: dev token must be a tier name", ErrInvalidToken)
		}
		return Principal{Subject: "dev", Tier: tier}, nil
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, fmt.Errorf("%w: not a JWT", ErrInvalidToken)
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: signature: %v", ErrInvalidToken, err)
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}

	signingInput := []byte(segs[0] + "." + segs[1])
	switch v.mode {
	case "hmac":
		if hdr.Alg != "HS256" {
			return Principal{}, fmt.Errorf("%w: unsupported alg %q", ErrInvalidToken, hdr.Alg)
		}
		mac := hmac.New(sha256.New, v.hmacSecret)
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return Principal{}, fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	case "jwks":
		if hdr.Alg != "RS256" {
			return Principal{}, fmt.Errorf("%w: unsupported alg %q", ErrInvalidToken, hdr.Alg)
		}
		pub, err := v.rsaPublicKey(ctx, hdr.Kid)
		if err != nil {
			return Principal{}, err
		}
		h := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
			return Principal{}, fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.mode)
	}

	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	// A verified token without a tier claim is a logged-in user.
	tier := model.TierAuthenticated
	if raw, ok := claims[v.tierClaim].(string); ok && raw != "" {
		tier = model.ParseTier(strings.ToLower(raw))
	}
	return Principal{Subject: sub, Tier: tier}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func (v *Verifier) rsaPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.jwks
	stale := v.now().Sub(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(ctx); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.jwks
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
		e := new(big.Int).SetBytes(eBytes)
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
	}
	return nil, fmt.Errorf("%w: kid %q not found in JWKS", ErrInvalidToken, kid)
}

func (v *Verifier) fetchJWKS(ctx context.Context) error {
	if v.jwksURL == "" {
		return errors.New("jwks url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var j jwks
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	v.mu.Lock()
	v.jwks = j
	v.lastFetch = v.now()
	v.mu.Unlock()
	return nil
}
