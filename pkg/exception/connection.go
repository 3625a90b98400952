package exception

import (
	"errors"

	yerrors "github.com/yanun0323/errors"
)

var (
	// ErrUnsupportedMode means the configured connection mode is unknown.
	ErrUnsupportedMode = yerrors.New("connection: unsupported mode")
	// ErrBadAddress means the feed address cannot be parsed.
	ErrBadAddress = yerrors.New("connection: bad address")
	// ErrLoginRejected means the feed rejected the credentials.
	ErrLoginRejected = yerrors.New("connection: login rejected")
	// ErrSessionFailed means the session is in the terminal failed state
	// and needs an operator reset before any further connect.
	ErrSessionFailed = yerrors.New("connection: session failed, reset required")
	// ErrReconnectExhausted means automatic reconnection gave up.
	ErrReconnectExhausted = yerrors.New("connection: reconnect attempts exhausted")
	// ErrNotConnected means the transport has no live session.
	ErrNotConnected = yerrors.New("connection: not connected")
	// ErrManagerClosed means the connection manager has been shut down.
	ErrManagerClosed = yerrors.New("connection: manager closed")
)

// FatalConnection reports whether err halts ingestion instead of
// triggering the backoff reconnect path.
func FatalConnection(err error) bool {
	return errors.Is(err, ErrUnsupportedMode) ||
		errors.Is(err, ErrBadAddress) ||
		errors.Is(err, ErrLoginRejected)
}
