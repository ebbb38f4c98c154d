package session_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/stretchr/testify/require"
)

func TestAuthorizedRefreshesOnceOn401(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), userEmail, userPassword).OK)
	before, _ := h.storedPair(t)
	h.backend.ExpireAccessTokens()

	u, err := session.Authorized(context.Background(), h.manager, h.client.CurrentUser)

	require.NoError(t, err)
	require.Equal(t, h.user.ID, u.ID)
	require.Equal(t, 1, h.backend.Calls(api.EndpointRefreshToken))

	snap := h.manager.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.Equal(t, h.user.ID, snap.User.ID)
	after, ok := h.storedPair(t)
	require.True(t, ok)
	require.NotEqual(t, before, after)
}

func TestAuthorizedConcurrent401sShareOneRefresh(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), adminEmail, adminPassword).OK)
	h.backend.ExpireAccessTokens()
	h.backend.SetLatency(api.EndpointRefreshToken, 50*time.Millisecond)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = session.Authorized(context.Background(), h.manager, func(ctx context.Context) (int, error) {
				page, err := h.client.ListUsers(ctx, 1, 10)
				return page.Total, err
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, h.backend.Calls(api.EndpointRefreshToken))
	require.Equal(t, session.StateAuthenticated, h.manager.Snapshot().State)
}

func TestAuthorizedPassesThroughOtherErrors(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), adminEmail, adminPassword).OK)
	h.backend.FailNext(api.EndpointListUsers, http.StatusInternalServerError, "db down")

	_, err := session.Authorized(context.Background(), h.manager, func(ctx context.Context) (int, error) {
		page, err := h.client.ListUsers(ctx, 1, 10)
		return page.Total, err
	})

	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
	require.Zero(t, h.backend.Calls(api.EndpointRefreshToken))
	require.Equal(t, session.StateAuthenticated, h.manager.Snapshot().State)
}

func TestAuthorizedRefreshFailureEndsSession(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), adminEmail, adminPassword).OK)
	h.backend.ExpireAccessTokens()
	h.backend.RevokeRefreshTokens()

	_, err := session.Authorized(context.Background(), h.manager, func(ctx context.Context) (int, error) {
		page, err := h.client.ListUsers(ctx, 1, 10)
		return page.Total, err
	})

	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, session.KindServerRejected, authErr.Kind)
	require.Equal(t, http.StatusUnauthorized, authErr.Code)
	require.Equal(t, 1, h.backend.Calls(api.EndpointListUsers))
	requireAnonymous(t, h.manager)
}

func TestAuthorizedDoRetriesAdminMutation(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), adminEmail, adminPassword).OK)
	h.backend.ExpireAccessTokens()

	err := session.AuthorizedDo(context.Background(), h.manager, func(ctx context.Context) error {
		return h.client.DeleteUser(ctx, h.user.ID)
	})

	require.NoError(t, err)
	require.Equal(t, 2, h.backend.Calls(api.EndpointDeleteUser))
	page, err := h.client.ListUsers(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
}

func TestAuthorizedForbiddenIsNotRetried(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), userEmail, userPassword).OK)

	err := session.AuthorizedDo(context.Background(), h.manager, func(ctx context.Context) error {
		return h.client.DeleteUser(ctx, h.admin.ID)
	})

	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, api.StatusCode(err))
	require.Equal(t, "Admin access required", api.AsError(err).Message)
	require.Zero(t, h.backend.Calls(api.EndpointRefreshToken))
}

func TestExplicitRefreshAlwaysExchanges(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.manager.Login(context.Background(), userEmail, userPassword).OK)
	h.backend.SetLatency(api.EndpointLogin, 100*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.manager.Login(context.Background(), adminEmail, adminPassword)
	}()
	time.Sleep(20 * time.Millisecond)

	// The 401 below is for a token the slow login is about to replace, so its
	// refresh is skipped once the login completes.
	var calls atomic.Int32
	var authErr error
	go func() {
		defer wg.Done()
		_, authErr = session.Authorized(context.Background(), h.manager, func(ctx context.Context) (int, error) {
			if calls.Add(1) == 1 {
				return 0, &api.Error{Message: "expired", Code: http.StatusUnauthorized}
			}
			return 1, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	result := h.manager.RefreshToken(context.Background())
	wg.Wait()

	require.True(t, result.OK)
	require.NoError(t, authErr)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, h.backend.Calls(api.EndpointRefreshToken))
	snap := h.manager.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.Equal(t, h.admin.ID, snap.User.ID)
}
