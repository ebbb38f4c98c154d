package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the subset of access token claims the client cares about.
// The signature is NOT verified: the backend is the only party that can do that,
// and the client only uses these values for display and expiry hints.
type Claims struct {
	Subject   string    // User ID the token was issued to
	Email     string    // Email claim, when the backend includes it
	Role      string    // Role claim, when the backend includes it
	IssuedAt  time.Time // Zero when absent
	ExpiresAt time.Time // Zero when absent or when the token is not a JWT
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// Inspect decodes the claims of a JWT access token without verifying it.
// Opaque (non-JWT) tokens return an error; callers treat that as "no expiry known".
func Inspect(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, errors.New("[Inspect] empty token")
	}

	var ac accessClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, &ac); err != nil {
		return Claims{}, errors.Wrap(err, "[Inspect] token is not a readable JWT")
	}

	claims := Claims{
		Subject: ac.Subject,
		Email:   ac.Email,
		Role:    ac.Role,
	}
	if ac.IssuedAt != nil {
		claims.IssuedAt = ac.IssuedAt.Time
	}
	if ac.ExpiresAt != nil {
		claims.ExpiresAt = ac.ExpiresAt.Time
	}
	return claims, nil
}

// ExpiresAt returns the expiry of a JWT access token, or the zero time when unknown.
func ExpiresAt(rawToken string) time.Time {
	claims, err := Inspect(rawToken)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}

// Expired reports whether the claims carry an expiry that is at or before now.
// Tokens without an expiry are never considered expired.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
