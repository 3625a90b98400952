package exception

import "github.com/yanun0323/errors"

var (
	// ErrQueueOverflow means an event was dropped by the bounded queue.
	ErrQueueOverflow = errors.New("dispatch: queue overflow")
	// ErrDispatcherClosed means the dispatcher no longer accepts events.
	ErrDispatcherClosed = errors.New("dispatch: closed")
	// ErrNilHandler means a subscriber registered without a handler.
	ErrNilHandler = errors.New("dispatch: nil handler")
)
