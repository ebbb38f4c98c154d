package apitest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUserID stores the authenticated user ID
const ContextKeyUserID ContextKey = "user_id"

type middleware func(http.HandlerFunc) http.HandlerFunc

func chainMiddleware(routeFunction http.HandlerFunc, mw ...middleware) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// apiMiddleware is the chain every endpoint gets, followed by mw.
func (b *Backend) apiMiddleware(endpoint string, mw ...middleware) []middleware {
	chain := []middleware{
		b.loggingMiddleware,
		b.recoverMiddleware,
		b.recordMiddleware(endpoint),
		b.faultMiddleware(endpoint),
	}
	return append(chain, mw...)
}

func (b *Backend) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		b.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("took", time.Since(start)).
			Msg("apitest request")
	}
}

func (b *Backend) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				b.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next(w, r)
	}
}

// recordMiddleware counts the call and keeps a copy of the request body.
func (b *Backend) recordMiddleware(endpoint string) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			b.lock.Lock()
			b.calls[endpoint]++
			b.requests[endpoint] = append(b.requests[endpoint], Request{
				Method: r.Method,
				Path:   r.URL.Path,
				Header: r.Header.Clone(),
				Body:   body,
			})
			b.lock.Unlock()

			next(w, r)
		}
	}
}

// faultMiddleware applies configured latency and any queued failure.
func (b *Backend) faultMiddleware(endpoint string) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.lock.Lock()
			delay := b.latency[endpoint]
			var failure *injectedFailure
			if queued := b.failures[endpoint]; len(queued) > 0 {
				failure = &queued[0]
				b.failures[endpoint] = queued[1:]
			}
			b.lock.Unlock()

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}

			switch {
			case failure == nil:
				next(w, r)
			case failure.status == 0:
				dropConnection(w)
			default:
				writeError(w, failure.status, failure.message)
			}
		}
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

// requireAuth validates the Bearer access token and injects the user ID.
func (b *Backend) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		userID, jti, err := b.signer.Verify(parts[1], b.nowFunc())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		b.lock.Lock()
		owner, active := b.activeAccess[jti]
		b.lock.Unlock()
		if !active || owner != userID {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyUserID, userID)))
	}
}

// requireAdmin must run after requireAuth.
func (b *Backend) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		u, err := b.users.GetByID(userID)
		if err != nil || !u.IsAdmin() {
			writeErrorField(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	}
}
