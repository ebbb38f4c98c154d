package apitest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
)

const minPasswordLength = 6

func (b *Backend) initRoutes(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc, mw ...middleware) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+BasePath+path, chainMiddleware(h, b.apiMiddleware(endpoint, mw...)...))
	}

	route("POST /login", api.EndpointLogin, b.loginHandler())
	route("POST /register", api.EndpointRegister, b.registerHandler())
	route("POST /refresh-token", api.EndpointRefreshToken, b.refreshHandler())
	route("POST /logout", api.EndpointLogout, b.logoutHandler(), b.requireAuth)

	route("GET /me", api.EndpointCurrentUser, b.meHandler(), b.requireAuth)
	route("PUT /me", api.EndpointUpdateProfile, b.updateProfileHandler(), b.requireAuth)

	route("GET /admin/users", api.EndpointListUsers, b.listUsersHandler(), b.requireAuth, b.requireAdmin)
	route("PUT /admin/users/{id}", api.EndpointUpdateUser, b.updateUserHandler(), b.requireAuth, b.requireAdmin)
	route("DELETE /admin/users/{id}", api.EndpointDeleteUser, b.deleteUserHandler(), b.requireAuth, b.requireAdmin)
}

func (b *Backend) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		u, err := b.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil || !b.passwordMatches(u.ID, req.Password) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		b.writeAuthResponse(w, u, false)
	}
}

func (b *Backend) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "Email and username are required")
			return
		}
		if len(req.Password) < minPasswordLength {
			writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		if _, err := b.users.GetByEmail(email); err == nil {
			writeErrorField(w, http.StatusConflict, "User already exists")
			return
		}

		u := &users.User{Email: email, Username: req.Username, Role: users.RoleUser}
		if err := b.users.Upsert(u); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}
		b.lock.Lock()
		b.passwords[u.ID] = req.Password
		b.lock.Unlock()

		b.writeAuthResponse(w, u, false)
	}
}

// refreshHandler rotates the refresh token. The access token comes back as access_token.
func (b *Backend) refreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "Refresh token is required")
			return
		}

		b.lock.Lock()
		userID, ok := b.refreshTokens[req.RefreshToken]
		delete(b.refreshTokens, req.RefreshToken)
		b.lock.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}

		u, err := b.users.GetByID(userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		b.writeAuthResponse(w, u, true)
	}
}

func (b *Backend) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LogoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		b.lock.Lock()
		if req.RefreshToken != "" && b.refreshTokens[req.RefreshToken] == userID {
			delete(b.refreshTokens, req.RefreshToken)
		}
		for jti, owner := range b.activeAccess {
			if owner == userID {
				delete(b.activeAccess, jti)
			}
		}
		b.lock.Unlock()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

func (b *Backend) meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		u, err := b.users.GetByID(userID)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// updateProfileHandler lets users edit their own record. Role changes are ignored.
func (b *Backend) updateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		var patch users.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		patch.Role = nil
		b.applyPatch(w, userID, patch)
	}
}

func (b *Backend) listUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", api.DefaultPage)
		limit := queryInt(r, "limit", api.DefaultLimit)

		result, err := b.users.List((page-1)*limit, limit)
		if err != nil {
			writeErrorField(w, http.StatusInternalServerError, "Failed to list users")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (b *Backend) updateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch users.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeErrorField(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if patch.Role != nil {
			if _, err := users.ParseRole(string(*patch.Role)); err != nil {
				writeErrorField(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		b.applyPatch(w, r.PathValue("id"), patch)
	}
}

func (b *Backend) deleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.users.Delete(r.PathValue("id")); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				writeErrorField(w, http.StatusNotFound, "User not found")
				return
			}
			writeErrorField(w, http.StatusInternalServerError, "Failed to delete user")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
	}
}

func (b *Backend) applyPatch(w http.ResponseWriter, userID string, patch users.Patch) {
	u, err := b.users.GetByID(userID)
	if err != nil {
		writeErrorField(w, http.StatusNotFound, "User not found")
		return
	}
	updated := u.Apply(patch)
	if err := b.users.Upsert(&updated); err != nil {
		writeErrorField(w, http.StatusInternalServerError, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (b *Backend) writeAuthResponse(w http.ResponseWriter, u *users.User, refresh bool) {
	b.lock.Lock()
	omit := b.omitTokens
	b.lock.Unlock()
	if omit {
		writeJSON(w, http.StatusOK, api.AuthResponse{Message: "ok"})
		return
	}

	pair, err := b.issuePair(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}
	resp := api.AuthResponse{RefreshToken: pair.RefreshToken}
	if refresh {
		resp.AccessToken = pair.AccessToken
	} else {
		resp.Token = pair.AccessToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) passwordMatches(userID, password string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	stored, ok := b.passwords[userID]
	return ok && stored == password
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the {"message": ...} error shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeErrorField answers with the {"error": ...} error shape some routes use.
func writeErrorField(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
