package session

import (
	"context"

	"github.com/jrsteele09/go-auth-client/api"
)

// Authorized runs call and, if the backend answers 401, refreshes the session
// once and retries. Concurrent 401s share a single refresh. When the token
// already changed since call started, the retry happens without refreshing.
func Authorized[T any](ctx context.Context, m *Manager, call func(ctx context.Context) (T, error)) (T, error) {
	generation := m.tokenGeneration()

	v, err := call(ctx)
	if err == nil || !api.IsUnauthorized(err) {
		return v, err
	}

	if result := m.refreshAfter(ctx, generation); !result.OK {
		var zero T
		return zero, result.Err
	}
	return call(ctx)
}

// AuthorizedDo is Authorized for calls that only return an error.
func AuthorizedDo(ctx context.Context, m *Manager, call func(ctx context.Context) error) error {
	_, err := Authorized(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}
