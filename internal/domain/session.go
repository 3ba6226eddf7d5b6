package domain

// Identity is what the handshake proves about a connection. It is fixed for
// the lifetime of the session and passed by value to every activity.
type Identity struct {
	UserID  string
	ClassID string
	IsOwner bool
}

// Role labels the identity for logs and metrics.
func (i Identity) Role() string {
	if i.IsOwner {
		return "owner"
	}
	return "participant"
}

// SessionState is the lifecycle of one meeting connection.
type SessionState int32

const (
	StateAwaitingAuth SessionState = iota
	StateAuthenticated
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
