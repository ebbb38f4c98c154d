package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("some-other-service-secret"))
	require.NoError(t, err)
	return s
}

func TestInspectReadsClaimsWithoutKey(t *testing.T) {
	iat := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exp := iat.Add(15 * time.Minute)

	raw := signed(t, jwtlib.MapClaims{
		"sub":   "u1",
		"email": "a@b.com",
		"role":  "admin",
		"iat":   iat.Unix(),
		"exp":   exp.Unix(),
	})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "a@b.com", claims.Email)
	require.Equal(t, "admin", claims.Role)
	require.True(t, claims.IssuedAt.Equal(iat))
	require.True(t, claims.ExpiresAt.Equal(exp))

	require.False(t, claims.Expired(exp.Add(-time.Second)))
	require.True(t, claims.Expired(exp))
}

func TestInspectExpiredTokenStillDecodes(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	raw := signed(t, jwtlib.MapClaims{"sub": "u1", "exp": exp.Unix()})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.True(t, claims.Expired(time.Now()))
	require.True(t, token.ExpiresAt(raw).Equal(exp))
}

func TestInspectOpaqueToken(t *testing.T) {
	_, err := token.Inspect("T1")
	require.Error(t, err)

	_, err = token.Inspect("  ")
	require.Error(t, err)

	require.True(t, token.ExpiresAt("opaque-refresh-token").IsZero())
}

func TestClaimsWithoutExpiryNeverExpire(t *testing.T) {
	require.False(t, token.Claims{}.Expired(time.Now()))
}
