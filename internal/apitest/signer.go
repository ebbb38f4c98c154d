package apitest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
)

// hmacSigner issues and verifies HS256 access tokens for the fake backend.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (h *hmacSigner) Sign(user *users.User, issuedAt time.Time, ttl time.Duration, jti string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(ttl).Unix(),
		"jti":   jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the subject and token id.
func (h *hmacSigner) Verify(raw string, now time.Time) (subject, jti string, err error) {
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, h.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid access token")
	}
	subject, _ = claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	if subject == "" || jti == "" {
		return "", "", errors.New("access token is missing sub or jti")
	}
	return subject, jti, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
