package entity

// SessionState is the authentication state of the client session.
// Initializing is entered exactly once at process start and never re-entered.
type SessionState int

const (
	// SessionInitializing means bootstrap has not yet decided either way.
	SessionInitializing SessionState = iota
	// SessionUnauthenticated means no valid credential set is active.
	SessionUnauthenticated
	// SessionAuthenticated means a credential set is active and trusted.
	SessionAuthenticated
)

// String returns a human-readable state name for logging.
func (s SessionState) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
