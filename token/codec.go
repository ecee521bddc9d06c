package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed indicates a token that does not have three dot-separated
// segments, or whose header/payload segments are not base64-encoded JSON.
var ErrMalformed = errors.New("malformed token")

// Claims is the decoded payload of an access token. The signature segment
// is never verified here; signature trust belongs to the server that issued
// the token.
type Claims struct {
	Subject     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Role        string
	Permissions []string
}

type payload struct {
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Decode splits and base64/JSON-decodes the token without verifying its
// signature. It fails with [ErrMalformed] when the segment count is not
// three, a segment is not valid base64, or the payload is not valid JSON.
func Decode(tokenStr string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, &payload{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p, ok := parsed.Claims.(*payload)
	if !ok {
		return nil, ErrMalformed
	}

	claims := &Claims{
		Subject:     p.Subject,
		Role:        p.Role,
		Permissions: append([]string(nil), p.Permissions...),
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	if p.ExpiresAt != nil {
		claims.ExpiresAt = p.ExpiresAt.Time
	}

	return claims, nil
}

// Expired reports whether the claims are expired at the given instant.
// Claims without an exp field are treated as already expired.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil {
		return true
	}
	return !c.ExpiresAt.After(now)
}

// TTL returns the remaining lifetime of the claims at the given instant,
// clamped at zero.
func (c *Claims) TTL(now time.Time) time.Duration {
	if c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
