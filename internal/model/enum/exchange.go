package enum

// Exchange identifies the venue a security trades on.
type Exchange uint8

const (
	ExchangeUnknown Exchange = iota
	// ExchangeSSE is the Shanghai stock exchange.
	ExchangeSSE
	// ExchangeSZSE is the Shenzhen stock exchange.
	ExchangeSZSE
	// ExchangeCOMM subscribes across all venues the feed serves.
	ExchangeCOMM
)

func (e Exchange) String() string {
	switch e {
	case ExchangeSSE:
		return "SSE"
	case ExchangeSZSE:
		return "SZSE"
	case ExchangeCOMM:
		return "COMM"
	default:
		return "unknown"
	}
}

// IsAvailable reports whether the exchange is recognized.
func (e Exchange) IsAvailable() bool {
	return e == ExchangeSSE || e == ExchangeSZSE || e == ExchangeCOMM
}

// ParseExchange maps a config string to an exchange.
func ParseExchange(s string) (Exchange, bool) {
	switch s {
	case "SSE":
		return ExchangeSSE, true
	case "SZSE":
		return ExchangeSZSE, true
	case "COMM":
		return ExchangeCOMM, true
	default:
		return ExchangeUnknown, false
	}
}
