package enum

// ConnState is the single connection-lifecycle state of the subsystem.
type ConnState uint8

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnLoggedIn
	ConnReconnecting
	// ConnFailed is terminal until an explicit operator reset.
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnLoggedIn:
		return "logged_in"
	case ConnReconnecting:
		return "reconnecting"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Live reports whether a session is currently established.
func (s ConnState) Live() bool {
	return s == ConnConnected || s == ConnLoggedIn
}
