package session

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ErrorKind classifies why a session operation failed.
type ErrorKind string

const (
	// KindNetworkUnreachable means no response was received. Code is 0.
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	// KindServerRejected means the backend answered with an error status. Code is that status.
	KindServerRejected ErrorKind = "server_rejected"
	// KindInvalidServerResponse means a 2xx response was missing required fields.
	KindInvalidServerResponse ErrorKind = "invalid_server_response"
	// KindNoRefreshToken means a refresh was attempted with nothing stored.
	KindNoRefreshToken ErrorKind = "no_refresh_token"
	// KindUnauthorized means the user fetch rejected the access token.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindUnexpected covers local failures such as an unreadable credential store. Code is -1.
	KindUnexpected ErrorKind = "unexpected"
)

const (
	msgInvalidResponse = "Invalid response from server"
	msgNoRefreshToken  = "No refresh token available"
	msgUserFetch       = "Failed to load user data"
	msgLoginFailed     = "Login failed"
	msgRegisterFailed  = "Registration failed"
	msgRefreshFailed   = "Token refresh failed"
	msgStoreFailed     = "Failed to store credentials"
	msgLoadFailed      = "Failed to read stored credentials"
)

// AuthError describes a failed session operation. It is never persisted.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Code    int
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (%s, code %d)", e.Message, e.Kind, e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Result is what every session action returns. Failures are values, not panics.
type Result struct {
	OK  bool
	Err *AuthError
}

// Reason is a human readable explanation; empty on success.
func (r Result) Reason() string {
	if r.OK || r.Err == nil {
		return ""
	}
	return r.Err.Message
}

func success() Result {
	return Result{OK: true}
}

func failure(err *AuthError) Result {
	return Result{Err: err}
}

// transportError maps a transport failure onto an AuthError. fallback names the
// failed operation and replaces the generic message when the backend gave no reason.
func transportError(err error, fallback string) *AuthError {
	apiErr := api.AsError(err)
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidServerResponse):
		return &AuthError{Kind: KindInvalidServerResponse, Message: msgInvalidResponse, Code: api.CodeUnexpected, Err: err}
	case apiErr.IsNetwork():
		return &AuthError{Kind: KindNetworkUnreachable, Message: apiErr.Message, Code: api.CodeNetwork, Err: err}
	case apiErr.IsHTTP():
		msg := apiErr.Message
		if msg == "" || msg == api.MessageRejected {
			msg = fallback
		}
		return &AuthError{Kind: KindServerRejected, Message: msg, Code: apiErr.Code, Err: err}
	default:
		return &AuthError{Kind: KindUnexpected, Message: fallback, Code: api.CodeUnexpected, Err: err}
	}
}

// fetchError maps a failed user fetch. A 401 there is the refresh trigger.
func fetchError(err error) *AuthError {
	ae := transportError(err, msgUserFetch)
	if ae.Code == http.StatusUnauthorized {
		ae.Kind = KindUnauthorized
	}
	ae.Message = msgUserFetch
	return ae
}

func invalidResponse(op string) *AuthError {
	return &AuthError{
		Kind:    KindInvalidServerResponse,
		Message: msgInvalidResponse,
		Code:    api.CodeUnexpected,
		Err:     apperrors.Wrapf(apperrors.ErrInvalidServerResponse, "%s response missing token pair", op),
	}
}

func noRefreshToken() *AuthError {
	return &AuthError{Kind: KindNoRefreshToken, Message: msgNoRefreshToken, Code: api.CodeUnexpected, Err: apperrors.ErrNoRefreshToken}
}

func localError(msg string, err error) *AuthError {
	return &AuthError{Kind: KindUnexpected, Message: msg, Code: api.CodeUnexpected, Err: err}
}
