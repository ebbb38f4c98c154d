package session_test

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/users"
)

// fakeAPI is a scripted transport for scenarios that pin exact payloads.
type fakeAPI struct {
	lock sync.Mutex

	loginResp   api.AuthResponse
	loginErr    error
	refreshResp api.AuthResponse
	refreshErr  error
	logoutErr   error
	me          *users.User
	meErrs      []error // consumed one per CurrentUser call before me is returned
	calls       map[string]int
	token       string
	refreshSeen []string
	tokensAtMe  []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) SetToken(token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.token = token
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (api.AuthResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[api.EndpointLogin]++
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, _, _, _ string) (api.AuthResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[api.EndpointRegister]++
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Logout(_ context.Context, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[api.EndpointLogout]++
	return f.logoutErr
}

func (f *fakeAPI) RefreshToken(_ context.Context, refreshToken string) (api.AuthResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[api.EndpointRefreshToken]++
	f.refreshSeen = append(f.refreshSeen, refreshToken)
	return f.refreshResp, f.refreshErr
}

func (f *fakeAPI) CurrentUser(_ context.Context) (*users.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[api.EndpointCurrentUser]++
	f.tokensAtMe = append(f.tokensAtMe, f.token)
	if len(f.meErrs) > 0 {
		err := f.meErrs[0]
		f.meErrs = f.meErrs[1:]
		return nil, err
	}
	return f.me.Clone(), nil
}

func (f *fakeAPI) totalCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeAPI) callCount(endpoint string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[endpoint]
}

func (f *fakeAPI) currentToken() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.token
}

// failingStore returns loadErr from Load and otherwise behaves like a MemoryStore.
type failingStore struct {
	*credentials.MemoryStore
	loadErr error
}

func (s *failingStore) Load(ctx context.Context) (credentials.Pair, bool, error) {
	if s.loadErr != nil {
		return credentials.Pair{}, false, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

type recordedOutcome struct {
	op string
	ok bool
}

type fakeMetrics struct {
	lock       sync.Mutex
	operations []recordedOutcome
	refreshes  []bool
}

func (m *fakeMetrics) ObserveOperation(op string, ok bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.operations = append(m.operations, recordedOutcome{op: op, ok: ok})
}

func (m *fakeMetrics) ObserveRefresh(ok bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.refreshes = append(m.refreshes, ok)
}
