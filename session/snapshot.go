package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/users"
)

// Snapshot is a consistent, read-only view of the session. Tokens are never exposed.
type Snapshot struct {
	State           State
	User            *users.User // Copy; nil unless a user was fetched
	HasCredentials  bool        // An access token is held in memory
	Authenticated   bool        // HasCredentials and User != nil
	Loading         bool        // Initialize, Login or Register is in progress
	AccessExpiresAt time.Time   // Zero when the token carries no exp claim
}

// Viewer is the read side of the consumer contract.
type Viewer interface {
	Snapshot() Snapshot
	Subscribe() (<-chan Snapshot, func())
}

// Actions is the write side of the consumer contract.
type Actions interface {
	Initialize(ctx context.Context) Result
	Login(ctx context.Context, email, password string) Result
	Register(ctx context.Context, email, username, password string) Result
	Logout(ctx context.Context)
	RefreshToken(ctx context.Context) Result
	UpdateUser(patch users.Patch)
}

var (
	_ Viewer  = (*Manager)(nil)
	_ Actions = (*Manager)(nil)
)

// Snapshot returns the current view of the session.
func (m *Manager) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel that receives a Snapshot after every change,
// starting with the current one. Slow readers only see the latest snapshot.
// The returned func unsubscribes and closes the channel.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSubscriber
	m.nextSubscriber++
	m.subscribers[id] = ch
	ch <- m.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.lock.Lock()
			defer m.lock.Unlock()
			if sub, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(sub)
			}
		})
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          m.state.phase,
		HasCredentials: m.state.pair.AccessToken != "",
		Loading:        m.state.loading,
	}
	if m.state.user != nil {
		snap.User = m.state.user.Clone()
	}
	snap.Authenticated = snap.HasCredentials && snap.User != nil
	if snap.HasCredentials {
		snap.AccessExpiresAt = m.state.pair.AccessExpiry()
	}
	return snap
}

// publishLocked delivers snap to every subscriber, replacing anything unread.
func (m *Manager) publishLocked(snap Snapshot) {
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
