// Package session owns the authenticated session of the admin console: the
// in-memory credential pair, the current user and the transitions between
// anonymous and authenticated.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/credentials"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Operation names used for logging and metrics.
const (
	OpInitialize = "initialize"
	OpLogin      = "login"
	OpRegister   = "register"
	OpLogout     = "logout"
	OpRefresh    = "refresh"
)

// Singleflight keys. Explicit refreshes always exchange; refreshes caused by a
// rejected request may be skipped when the token already changed.
const (
	explicitRefreshKey = "refresh"
	rejectedRefreshKey = "refresh-after-401"
)

// API is the subset of the transport the session drives.
type API interface {
	SetToken(token string)
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	Register(ctx context.Context, email, username, password string) (api.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (api.AuthResponse, error)
	CurrentUser(ctx context.Context) (*users.User, error)
}

var _ API = (*api.Client)(nil)

// Metrics receives operation outcomes.
type Metrics interface {
	ObserveOperation(op string, ok bool)
	ObserveRefresh(ok bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, bool) {}
func (noopMetrics) ObserveRefresh(bool)           {}

// sessionState is everything guarded by Manager.lock.
type sessionState struct {
	pair       credentials.Pair
	user       *users.User
	phase      State
	loading    bool
	generation uint64 // bumped whenever the in-memory access token changes
}

// Manager is the single owner of session state. Initialize, Login, Register,
// Logout and RefreshToken are serialized; readers never block on the network.
type Manager struct {
	store   credentials.Store
	api     API
	logger  zerolog.Logger
	metrics Metrics

	opLock  sync.Mutex
	refresh singleflight.Group

	lock           sync.RWMutex
	state          sessionState
	subscribers    map[uint64]chan Snapshot
	nextSubscriber uint64
	closed         bool
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for session transitions.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the outcome recorder.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// New creates a Manager in the Uninitialized state. Call Initialize before use.
func New(store credentials.Store, client API, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[New] credential store is required")
	}
	if client == nil {
		return nil, errors.New("[New] api client is required")
	}

	m := &Manager{
		store:       store,
		api:         client,
		logger:      zerolog.Nop(),
		metrics:     noopMetrics{},
		subscribers: make(map[uint64]chan Snapshot),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Initialize restores a session from the credential store. Stored tokens are
// validated by fetching the current user; if that fails one refresh is attempted.
func (m *Manager) Initialize(ctx context.Context) Result {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	m.mutate(func(s *sessionState) {
		s.phase = StateInitializing
		s.loading = true
	})
	defer m.setLoading(false)

	result := m.initialize(ctx)
	m.observe(OpInitialize, result)
	return result
}

func (m *Manager) initialize(ctx context.Context) Result {
	pair, ok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("[Initialize] reading stored credentials")
		m.clear(ctx)
		return failure(localError(msgLoadFailed, err))
	}
	if !ok {
		m.clear(ctx)
		return success()
	}

	m.setPair(pair)

	user, err := m.fetchUser(ctx)
	if err == nil {
		m.setUser(user)
		return success()
	}

	m.logger.Info().Err(err).Msg("[Initialize] stored access token rejected, refreshing")
	return m.refreshLocked(ctx)
}

// Login exchanges credentials for a token pair, stores it and fetches the user.
// Failures before tokens are received leave the session unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) Result {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	result := m.authenticate(ctx, OpLogin, msgLoginFailed, func() (api.AuthResponse, error) {
		return m.api.Login(ctx, email, password)
	})
	m.observe(OpLogin, result)
	return result
}

// Register creates an account and signs in with the returned tokens.
func (m *Manager) Register(ctx context.Context, email, username, password string) Result {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	result := m.authenticate(ctx, OpRegister, msgRegisterFailed, func() (api.AuthResponse, error) {
		return m.api.Register(ctx, email, username, password)
	})
	m.observe(OpRegister, result)
	return result
}

func (m *Manager) authenticate(ctx context.Context, op, fallback string, exchange func() (api.AuthResponse, error)) Result {
	m.setLoading(true)
	defer m.setLoading(false)

	resp, err := exchange()
	if err != nil {
		m.logger.Warn().Err(err).Str("op", op).Msg("credential exchange failed")
		return failure(transportError(err, fallback))
	}

	pair := resp.Pair()
	if !pair.Valid() {
		m.logger.Warn().Str("op", op).Msg("response did not include a token pair")
		return failure(invalidResponse(op))
	}

	if err := m.store.Save(ctx, pair); err != nil {
		m.logger.Error().Err(err).Str("op", op).Msg("saving credentials")
		return failure(localError(msgStoreFailed, err))
	}
	m.api.SetToken(pair.AccessToken)
	m.mutate(func(s *sessionState) {
		s.pair = pair
		s.generation++
		s.user = nil
		s.phase = StateUnverified
	})

	user, err := m.fetchUser(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", op).Msg("tokens stored but user fetch failed")
		return failure(fetchError(err))
	}
	m.setUser(user)
	return success()
}

// Logout tells the backend to revoke the refresh token when one is held, then
// clears local state. Backend failures are logged and otherwise ignored.
func (m *Manager) Logout(ctx context.Context) {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	m.lock.RLock()
	pair := m.state.pair
	m.lock.RUnlock()

	if pair.AccessToken != "" {
		if err := m.api.Logout(ctx, pair.RefreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("[Logout] backend logout failed, clearing local session")
		}
	}
	m.clear(ctx)
	m.observe(OpLogout, success())
}

// RefreshToken exchanges the refresh token for a new pair and refetches the
// user. Any failure leaves the session Anonymous. Concurrent callers share one exchange.
func (m *Manager) RefreshToken(ctx context.Context) Result {
	return m.sharedRefresh(ctx, explicitRefreshKey, func() bool { return false })
}

// refreshAfter refreshes unless the access token changed since generation was
// read, in which case the caller should simply retry with the newer token.
// It uses its own flight so explicit refreshes never join one that may skip
// the exchange.
func (m *Manager) refreshAfter(ctx context.Context, generation uint64) Result {
	return m.sharedRefresh(ctx, rejectedRefreshKey, func() bool {
		m.lock.RLock()
		defer m.lock.RUnlock()
		return m.state.generation != generation && m.state.pair.AccessToken != ""
	})
}

// sharedRefresh checks superseded under opLock, so a refresh that completed
// while the flight waited for the lock is seen.
func (m *Manager) sharedRefresh(ctx context.Context, key string, superseded func() bool) Result {
	v, _, _ := m.refresh.Do(key, func() (interface{}, error) {
		m.opLock.Lock()
		defer m.opLock.Unlock()

		if superseded() {
			return success(), nil
		}
		result := m.refreshLocked(ctx)
		m.observe(OpRefresh, result)
		return result, nil
	})
	return v.(Result)
}

// refreshLocked must be called with opLock held.
func (m *Manager) refreshLocked(ctx context.Context) Result {
	result := m.exchangeRefreshToken(ctx)
	m.metrics.ObserveRefresh(result.OK)
	if !result.OK {
		m.logger.Info().Str("reason", result.Reason()).Msg("[RefreshToken] refresh failed, session cleared")
		m.clear(ctx)
	}
	return result
}

func (m *Manager) exchangeRefreshToken(ctx context.Context) Result {
	refreshToken, err := m.currentRefreshToken(ctx)
	if err != nil {
		return failure(localError(msgLoadFailed, err))
	}
	if refreshToken == "" {
		return failure(noRefreshToken())
	}

	m.mutate(func(s *sessionState) { s.phase = StateRefreshing })

	resp, err := m.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		return failure(transportError(err, msgRefreshFailed))
	}
	pair := resp.Pair()
	if !pair.Valid() {
		return failure(invalidResponse(OpRefresh))
	}
	if err := m.store.Save(ctx, pair); err != nil {
		return failure(localError(msgStoreFailed, err))
	}
	m.setPair(pair)

	user, err := m.fetchUser(ctx)
	if err != nil {
		return failure(fetchError(err))
	}
	m.setUser(user)
	return success()
}

func (m *Manager) fetchUser(ctx context.Context) (*users.User, error) {
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidServerResponse, "[fetchUser] user has no id")
	}
	return user, nil
}

// currentRefreshToken prefers the in-memory token and falls back to the store.
func (m *Manager) currentRefreshToken(ctx context.Context) (string, error) {
	m.lock.RLock()
	refreshToken := m.state.pair.RefreshToken
	m.lock.RUnlock()
	if refreshToken != "" {
		return refreshToken, nil
	}

	pair, ok, err := m.store.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[currentRefreshToken] store.Load")
	}
	if !ok {
		return "", nil
	}
	return pair.RefreshToken, nil
}

// UpdateUser merges patch into the in-memory user. It never calls the backend
// and is a no-op when no user is held.
func (m *Manager) UpdateUser(patch users.Patch) {
	if patch.IsEmpty() {
		return
	}
	m.mutateIf(func(s *sessionState) bool {
		if s.user == nil {
			return false
		}
		merged := s.user.Apply(patch)
		s.user = &merged
		return true
	})
}

// Close unsubscribes every subscriber. The session state is left as is.
func (m *Manager) Close() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.closed = true
	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}
}

// CurrentUser returns a copy of the held user or ErrNoUser.
func (m *Manager) CurrentUser() (*users.User, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.state.user == nil {
		return nil, apperrors.ErrNoUser
	}
	return m.state.user.Clone(), nil
}

func (m *Manager) tokenGeneration() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state.generation
}

// clear removes all credentials and moves to Anonymous. The store is cleared
// even if ctx is already done.
func (m *Manager) clear(ctx context.Context) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error().Err(err).Msg("[clear] clearing stored credentials")
	}
	m.api.SetToken("")
	m.mutate(func(s *sessionState) {
		s.pair = credentials.Pair{}
		s.user = nil
		s.phase = StateAnonymous
		s.generation++
	})
}

func (m *Manager) setPair(pair credentials.Pair) {
	m.api.SetToken(pair.AccessToken)
	m.mutate(func(s *sessionState) {
		s.pair = pair
		s.generation++
	})
}

func (m *Manager) setUser(user *users.User) {
	m.mutate(func(s *sessionState) {
		s.user = user.Clone()
		s.phase = StateAuthenticated
	})
}

func (m *Manager) setLoading(loading bool) {
	m.mutateIf(func(s *sessionState) bool {
		if s.loading == loading {
			return false
		}
		s.loading = loading
		return true
	})
}

func (m *Manager) mutate(fn func(s *sessionState)) {
	m.mutateIf(func(s *sessionState) bool {
		fn(s)
		return true
	})
}

// mutateIf applies fn under the write lock and publishes when fn reports a change.
func (m *Manager) mutateIf(fn func(s *sessionState) bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if fn(&m.state) {
		m.publishLocked(m.snapshotLocked())
	}
}

func (m *Manager) observe(op string, result Result) {
	m.metrics.ObserveOperation(op, result.OK)
	event := m.logger.Debug()
	if !result.OK {
		event = m.logger.Info().Str("reason", result.Reason())
	}
	event.Str("op", op).Bool("ok", result.OK).Msg("session operation finished")
}
