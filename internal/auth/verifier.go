// Package auth verifies bearer tokens and extracts tenant and role claims.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrBadSignature = errors.New("auth: bad signature")
	ErrExpired      = errors.New("auth: token expired")
)

// Modes accepted by NewVerifier.
const (
	ModeNone = "none"
	ModeDev  = "dev"
	ModeHMAC = "hmac"
)

// Verifier validates bearer tokens. In dev mode a token is "tenant:role"; in
// hmac mode it is an HS256 JWT carrying tenant and role claims.
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	TenantClaim string
	RoleClaim   string
	Now         func() time.Time
}

type Principal struct {
	Tenant string
	Role   string
}

func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeDev
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(secret),
		TenantClaim: "tenant",
		RoleClaim:   "role",
		Now:         time.Now,
	}
}

// Enabled reports whether bearer tokens are inspected at all.
func (v *Verifier) Enabled() bool { return v != nil && v.Mode != ModeNone }

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case ModeDev:
		tenant, role, ok := strings.Cut(token, ":")
		if !ok || tenant == "" || role == "" {
			return Principal{}, errors.New("auth: invalid dev token; expected tenant:role")
		}
		return Principal{Tenant: tenant, Role: strings.ToLower(role)}, nil
	case ModeHMAC:
		return v.verifyHS256(token)
	}
	return Principal{}, errors.New("auth: unsupported auth mode")
}

func (v *Verifier) verifyHS256(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, ErrInvalidToken
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil || hdr.Alg != "HS256" {
		return Principal{}, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, ErrBadSignature
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, ErrInvalidToken
	}
	if exp, ok := claims["exp"].(float64); ok && v.Now().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	if tenant == "" {
		return Principal{}, errors.New("auth: missing tenant claim")
	}
	if role == "" {
		role = "viewer"
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role)}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
