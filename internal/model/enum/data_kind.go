package enum

// DataKind describes the meaning of a feed event payload.
type DataKind uint8

const (
	KindUnknown DataKind = iota
	// KindSnapshot is the 3-second depth-of-book quote snapshot.
	KindSnapshot
	// KindIndex is the index quote stream.
	KindIndex
	// KindTransaction is the tick-level executed trade stream.
	KindTransaction
	// KindOrderDetail is the tick-level order entry/cancel stream.
	KindOrderDetail
	// KindXTSSnapshot is the new-instrument (XTS) snapshot stream.
	KindXTSSnapshot
	// KindNGTSTick is the merged NGTS tick stream.
	KindNGTSTick

	kindSentinel
)

// KindCount is the number of valid kinds, usable as an array bound.
const KindCount = int(kindSentinel)

func (k DataKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindIndex:
		return "index"
	case KindTransaction:
		return "transaction"
	case KindOrderDetail:
		return "order_detail"
	case KindXTSSnapshot:
		return "xts_snapshot"
	case KindNGTSTick:
		return "ngts_tick"
	default:
		return "unknown"
	}
}

// IsAvailable reports whether the kind is a real stream.
func (k DataKind) IsAvailable() bool {
	return k > KindUnknown && k < kindSentinel
}

// SupportedOn reports whether the exchange serves this kind.
// Tick streams exist on SZSE only; XTS and NGTS exist on SSE only.
func (k DataKind) SupportedOn(e Exchange) bool {
	switch k {
	case KindSnapshot, KindIndex:
		return e.IsAvailable()
	case KindTransaction, KindOrderDetail:
		return e == ExchangeSZSE
	case KindXTSSnapshot, KindNGTSTick:
		return e == ExchangeSSE
	default:
		return false
	}
}

// ParseDataKind maps a config string to a kind.
func ParseDataKind(s string) (DataKind, bool) {
	switch s {
	case "snapshot":
		return KindSnapshot, true
	case "index":
		return KindIndex, true
	case "transaction":
		return KindTransaction, true
	case "order_detail":
		return KindOrderDetail, true
	case "xts_snapshot":
		return KindXTSSnapshot, true
	case "ngts_tick":
		return KindNGTSTick, true
	default:
		return KindUnknown, false
	}
}
