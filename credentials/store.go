// Package credentials persists the access/refresh token pair across restarts.
//
// A Store only ever holds a complete pair: Save rejects half pairs, Load reports
// a pair as present only when both tokens are stored, and Clear removes both.
// Stores never talk to the backend API.
package credentials

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token"
	"golang.org/x/oauth2"
)

// Stable keys the two tokens are stored under.
const (
	AccessTokenKey  = "token"
	RefreshTokenKey = "refreshToken"
)

// Pair is the access/refresh credential pair issued by login, register and refresh.
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both tokens are present.
func (p Pair) Valid() bool {
	return strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

// OAuth2Token converts the pair into a bearer oauth2.Token. Expiry is read from
// the access token's exp claim when it is a JWT.
func (p Pair) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       token.ExpiresAt(p.AccessToken),
	}
}

// AccessExpiry returns the access token's expiry, or the zero time when unknown.
func (p Pair) AccessExpiry() time.Time {
	return token.ExpiresAt(p.AccessToken)
}

// Store persists a credential Pair.
type Store interface {
	// Save replaces any stored pair. Incomplete pairs are rejected.
	Save(ctx context.Context, pair Pair) error

	// Load returns the stored pair and whether a complete pair was found.
	Load(ctx context.Context) (Pair, bool, error)

	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

func validate(pair Pair) error {
	if !pair.Valid() {
		return apperrors.ErrIncompleteTokenPair
	}
	return nil
}
