package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Session is the claims payload carried by an admin session token.
type Session struct {
	Subject   string `json:"sub"`
	Role      Role   `json:"role"`
	ExpiresAt int64  `json:"exp"` // unix seconds
}

var (
	ErrMalformedToken = errors.New("malformed session token")
	ErrBadTokenSig    = errors.New("bad session token signature")
	ErrTokenExpired   = errors.New("session token expired")
)

// SignSession produces the compact token form base64url(claims).base64url(sig)
// signed with HMAC-SHA256 under secret. The identity provider issues these;
// we also use it from tests and local tooling.
func SignSession(secret string, s Session) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + sign(secret, encoded), nil
}

// VerifySession checks the token's signature and expiry and returns the claims.
func VerifySession(secret, token string, now time.Time) (*Session, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrMalformedToken
	}
	if !hmac.Equal([]byte(sign(secret, encoded)), []byte(sig)) {
		return nil, ErrBadTokenSig
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedToken
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, ErrMalformedToken
	}
	if s.ExpiresAt != 0 && now.Unix() > s.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return &s, nil
}

func sign(secret, encoded string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
