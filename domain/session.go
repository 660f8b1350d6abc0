package domain

// ConnID identifies a single live transport connection. A user may hold
// several connections at once; delivery is always per connection.
type ConnID string

// SessionState tracks the lifecycle of one connection.
// Connecting -> Authenticated -> Subscribed -> Closed, with a direct jump
// to Closed when the credential check fails.
type SessionState int

const (
	Connecting SessionState = iota
	Authenticated
	Subscribed
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	}
	return "unknown"
}
