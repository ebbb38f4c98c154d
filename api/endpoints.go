package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
)

// Logical endpoint names, used for logging, metrics and errors.
const (
	EndpointLogin         = "login"
	EndpointRegister      = "register"
	EndpointLogout        = "logout"
	EndpointRefreshToken  = "refresh-token"
	EndpointCurrentUser   = "me"
	EndpointUpdateProfile = "update-profile"
	EndpointListUsers     = "list-users"
	EndpointUpdateUser    = "update-user"
	EndpointDeleteUser    = "delete-user"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Login exchanges email and password for a credential pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		endpoint: EndpointLogin,
		method:   http.MethodPost,
		path:     []string{"login"},
		body:     LoginRequest{Email: email, Password: password},
		out:      &resp,
	})
	return resp, err
}

// Register creates an account and returns its first credential pair.
func (c *Client) Register(ctx context.Context, email, username, password string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		endpoint: EndpointRegister,
		method:   http.MethodPost,
		path:     []string{"register"},
		body:     RegisterRequest{Email: email, Username: username, Password: password},
		out:      &resp,
	})
	return resp, err
}

// Logout asks the backend to invalidate the session. refreshToken may be empty.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, call{
		endpoint: EndpointLogout,
		method:   http.MethodPost,
		path:     []string{"logout"},
		body:     LogoutRequest{RefreshToken: refreshToken},
	})
}

// RefreshToken exchanges a refresh token for a new credential pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		endpoint: EndpointRefreshToken,
		method:   http.MethodPost,
		path:     []string{"refresh-token"},
		body:     RefreshTokenRequest{RefreshToken: refreshToken},
		out:      &resp,
	})
	return resp, err
}

// CurrentUser fetches the user the access token belongs to. A 2xx body without
// a user id is an invalid response.
func (c *Client) CurrentUser(ctx context.Context) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, call{
		endpoint: EndpointCurrentUser,
		method:   http.MethodGet,
		path:     []string{"me"},
		out:      &u,
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.ID) == "" {
		return nil, unexpectedError(EndpointCurrentUser, apperrors.Wrapf(apperrors.ErrInvalidServerResponse, "user has no id"))
	}
	return &u, nil
}

// UpdateProfile applies a patch to the current user.
func (c *Client) UpdateProfile(ctx context.Context, patch users.Patch) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, call{
		endpoint: EndpointUpdateProfile,
		method:   http.MethodPut,
		path:     []string{"me"},
		body:     patch,
		out:      &u,
	}); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns one page of users. Non-positive page or limit fall back to the defaults.
func (c *Client) ListUsers(ctx context.Context, page, limit int) (users.UsersPage, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var resp users.UsersPage
	err := c.do(ctx, call{
		endpoint: EndpointListUsers,
		method:   http.MethodGet,
		path:     []string{"admin", "users"},
		query:    url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}},
		out:      &resp,
	})
	return resp, err
}

// UpdateUser applies a patch to any user. Admin only.
func (c *Client) UpdateUser(ctx context.Context, userID string, patch users.Patch) (*users.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, unexpectedError(EndpointUpdateUser, apperrors.Wrapf(apperrors.ErrInvalidInput, "user id is required"))
	}
	var u users.User
	if err := c.do(ctx, call{
		endpoint: EndpointUpdateUser,
		method:   http.MethodPut,
		path:     []string{"admin", "users", url.PathEscape(userID)},
		body:     patch,
		out:      &u,
	}); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user. Admin only.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return unexpectedError(EndpointDeleteUser, apperrors.Wrapf(apperrors.ErrInvalidInput, "user id is required"))
	}
	return c.do(ctx, call{
		endpoint: EndpointDeleteUser,
		method:   http.MethodDelete,
		path:     []string{"admin", "users", url.PathEscape(userID)},
	})
}
