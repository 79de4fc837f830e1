// Package auth implements the portal's stateless access tokens: a JSON
// claims payload signed with HMAC-SHA256, plus the hashing applied to
// refresh tokens before they are stored server side.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Claims is the signed session payload. Role mirrors the users table and
// JTI keys the revocation list checked on every authenticated request.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// IssueToken signs the claims as "payload.signature", both base64url.
func IssueToken(secret []byte, claims Claims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + sign(secret, payload), nil
}

// ParseToken verifies the signature before decoding anything, then rejects
// tokens missing identity fields or past their expiry.
func ParseToken(secret []byte, token string) (Claims, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(signature), []byte(sign(secret, payload))) {
		return Claims{}, ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if err := claims.validate(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (c Claims) validate() error {
	if c.Sub == "" || c.Name == "" || c.JTI == "" || c.Exp == 0 {
		return ErrInvalidToken
	}
	if time.Now().Unix() >= c.Exp {
		return ErrExpiredToken
	}
	return nil
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// HashToken digests a refresh token for storage; the raw value never
// touches Redis or Postgres.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
