package api

import (
	"strings"

	"github.com/jrsteele09/go-auth-client/credentials"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest carries the refresh token so the backend can revoke it.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// AuthResponse is returned by /login, /register and /refresh-token.
// The gateway's refresh endpoint names the access token "access_token"; both are accepted.
type AuthResponse struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Pair returns the credential pair carried by the response. It may be incomplete;
// callers check Pair.Valid before trusting it.
func (r AuthResponse) Pair() credentials.Pair {
	access := strings.TrimSpace(r.Token)
	if access == "" {
		access = strings.TrimSpace(r.AccessToken)
	}
	return credentials.Pair{
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(r.RefreshToken),
	}
}

// errorBody is the shape of backend error responses. Services disagree on
// "message" versus "error", so both are read.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (b errorBody) reason() string {
	if b.Message != "" {
		return b.Message
	}
	if b.Error != "" {
		return b.Error
	}
	return MessageRejected
}
