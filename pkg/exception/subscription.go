package exception

import "github.com/yanun0323/errors"

var (
	// ErrSubscriptionInvalid means the request violates the exchange/kind
	// capability matrix and was never sent to the transport.
	ErrSubscriptionInvalid = errors.New("subscription: invalid kind/exchange combination")
	// ErrSubscriptionRejected means the transport refused a valid request.
	ErrSubscriptionRejected = errors.New("subscription: rejected by feed")
	// ErrNoSecurities means the request carried an empty security list.
	ErrNoSecurities = errors.New("subscription: empty security list")
	// ErrSubscriptionClosed means the manager stopped accepting requests.
	ErrSubscriptionClosed = errors.New("subscription: manager closed")
)
