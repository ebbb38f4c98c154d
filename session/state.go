package session

// State is the lifecycle position of the session.
type State int

const (
	// StateUninitialized is the state before Initialize has run.
	StateUninitialized State = iota
	// StateInitializing means stored credentials are being validated.
	StateInitializing
	// StateAnonymous means no credentials are held.
	StateAnonymous
	// StateAuthenticated means tokens are held and the user was fetched with them.
	StateAuthenticated
	// StateUnverified means tokens were stored but the user fetch that should
	// follow failed. Initialize, RefreshToken, Login or Logout resolve it.
	StateUnverified
	// StateRefreshing is held while a refresh token is being exchanged.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateUnverified:
		return "unverified"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
