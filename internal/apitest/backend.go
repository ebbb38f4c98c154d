// Package apitest runs an in-process stand-in for the admin REST backend.
// It issues real HS256 JWTs, keeps users in the fake user repo and lets tests
// count calls, inject failures and expire tokens.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// BasePath is where the API is mounted on the test server.
const BasePath = "/api/v1"

const (
	defaultAccessTTL = 15 * time.Minute
	signingSecret    = "apitest-signing-secret"
)

// Request is a recorded inbound request.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type injectedFailure struct {
	status  int // 0 drops the connection
	message string
}

// Backend is a fake admin backend bound to an httptest.Server.
type Backend struct {
	server    *httptest.Server
	users     *fakeuserrepo.FakeUserRepo
	signer    *hmacSigner
	logger    zerolog.Logger
	accessTTL time.Duration
	nowFunc   func() time.Time
	closeOnce sync.Once

	lock          sync.Mutex
	passwords     map[string]string // user id to password
	activeAccess  map[string]string // jti to user id
	refreshTokens map[string]string // refresh token to user id
	calls         map[string]int
	requests      map[string][]Request
	failures      map[string][]injectedFailure
	latency       map[string]time.Duration
	omitTokens    bool
}

// Option defines a function type to modify the Backend instance.
type Option func(*Backend)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = ttl
	}
}

// WithLogger logs every request the backend serves.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithNowTime sets the clock used for issuing and verifying tokens.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Backend) {
		b.nowFunc = nowFunc
	}
}

// New starts a Backend that is closed when the test ends.
func New(t testing.TB, options ...Option) *Backend {
	t.Helper()

	b := &Backend{
		users:         fakeuserrepo.NewFakeUserRepo(),
		signer:        newHMACSigner(signingSecret),
		logger:        zerolog.Nop(),
		accessTTL:     defaultAccessTTL,
		nowFunc:       time.Now,
		passwords:     make(map[string]string),
		activeAccess:  make(map[string]string),
		refreshTokens: make(map[string]string),
		calls:         make(map[string]int),
		requests:      make(map[string][]Request),
		failures:      make(map[string][]injectedFailure),
		latency:       make(map[string]time.Duration),
	}
	for _, opt := range options {
		opt(b)
	}

	mux := http.NewServeMux()
	b.initRoutes(mux)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// URL is the API base URL to hand to api.New.
func (b *Backend) URL() string {
	return b.server.URL + BasePath
}

// Close stops the server. Later requests fail with a network error.
func (b *Backend) Close() {
	b.closeOnce.Do(func() {
		b.server.CloseClientConnections()
		b.server.Close()
	})
}

// AddUser creates a user that can log in with password.
func (b *Backend) AddUser(t testing.TB, email, username, password string, role users.RoleType) *users.User {
	t.Helper()
	u := &users.User{Email: email, Username: username, Role: role}
	require.NoError(t, b.users.Upsert(u))

	b.lock.Lock()
	b.passwords[u.ID] = password
	b.lock.Unlock()
	return u.Clone()
}

// Issue returns a fresh valid credential pair for userID.
func (b *Backend) Issue(t testing.TB, userID string) credentials.Pair {
	t.Helper()
	u, err := b.users.GetByID(userID)
	require.NoError(t, err)
	pair, err := b.issuePair(u)
	require.NoError(t, err)
	return pair
}

// Calls returns how many requests reached endpoint, failed or not.
func (b *Backend) Calls(endpoint string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.calls[endpoint]
}

// Requests returns the recorded requests for endpoint in arrival order.
func (b *Backend) Requests(endpoint string) []Request {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Request(nil), b.requests[endpoint]...)
}

// FailNext makes the next request to endpoint answer status with message.
// Calls queue up; each one is consumed by a single request.
func (b *Backend) FailNext(endpoint string, status int, message string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failures[endpoint] = append(b.failures[endpoint], injectedFailure{status: status, message: message})
}

// DropNext closes the connection of the next request to endpoint without a response.
func (b *Backend) DropNext(endpoint string) {
	b.FailNext(endpoint, 0, "")
}

// SetLatency delays every response from endpoint.
func (b *Backend) SetLatency(endpoint string, d time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.latency[endpoint] = d
}

// ExpireAccessTokens invalidates every access token issued so far.
func (b *Backend) ExpireAccessTokens() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.activeAccess = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (b *Backend) RevokeRefreshTokens() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshTokens = make(map[string]string)
}

// OmitTokens makes login, register and refresh answer 200 without tokens.
func (b *Backend) OmitTokens(omit bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.omitTokens = omit
}

// ActiveRefreshTokens is the number of refresh tokens that would still be accepted.
func (b *Backend) ActiveRefreshTokens() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.refreshTokens)
}

func (b *Backend) issuePair(u *users.User) (credentials.Pair, error) {
	jti := uuid.NewString()
	access, err := b.signer.Sign(u, b.nowFunc(), b.accessTTL, jti)
	if err != nil {
		return credentials.Pair{}, err
	}
	refresh := uuid.NewString()

	b.lock.Lock()
	defer b.lock.Unlock()
	b.activeAccess[jti] = u.ID
	b.refreshTokens[refresh] = u.ID
	return credentials.Pair{AccessToken: access, RefreshToken: refresh}, nil
}
