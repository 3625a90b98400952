package model

import "main/internal/model/enum"

// Event is the transient envelope moved from the feed callback into the
// dispatch queue. It is immutable once constructed; subscribers must treat
// the payload as read-only because fan-out shares the same pointer.
type Event struct {
	Kind       enum.DataKind
	Exchange   enum.Exchange
	SecurityID string
	// Seq is the exchange-assigned sequence for the (security, kind) stream.
	Seq         int64
	EventTsNano int64
	RecvTsNano  int64
	// Payload is *Snapshot, *Index, *Transaction or *OrderDetail per Kind.
	Payload any
}

// SubKey identifies one subscription record.
// A SecurityID of WildcardSecurity covers every instrument on the exchange.
type SubKey struct {
	Kind       enum.DataKind
	Exchange   enum.Exchange
	SecurityID string
}

// WildcardSecurity subscribes all instruments of an exchange.
const WildcardSecurity = "00000000"

func (k SubKey) String() string {
	return k.Kind.String() + "/" + k.Exchange.String() + "/" + k.SecurityID
}
