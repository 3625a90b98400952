package feed

import (
	"context"

	"main/internal/model"
	"main/internal/model/enum"
)

// Mode selects how the physical feed session is established.
type Mode uint8

const (
	ModeUnknown Mode = iota
	// ModeTCP is the authenticated point-to-point stream.
	ModeTCP
	// ModeMulticast joins the UDP broadcast group; no login is required.
	ModeMulticast
)

func (m Mode) String() string {
	switch m {
	case ModeTCP:
		return "tcp"
	case ModeMulticast:
		return "multicast"
	default:
		return "unknown"
	}
}

// ParseMode maps a config string to a mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "tcp":
		return ModeTCP, true
	case "multicast":
		return ModeMulticast, true
	default:
		return ModeUnknown, false
	}
}

// Credentials authenticate a TCP session. Multicast sessions leave them empty.
type Credentials struct {
	UserID   string
	Password string
}

// Callbacks deliver transport-driven events. They run on the transport's
// own goroutines: implementations must return quickly and never block,
// or the feed read loop stalls and the session goes stale.
type Callbacks struct {
	OnConnected    func()
	OnDisconnected func(reason int)
	OnLoginResult  func(err error)
	OnSubResult    func(key model.SubKey, accepted bool)
	OnEvent        func(e model.Event)
}

// API is the opaque capability set of the vendor feed. The ingestion core
// never assumes anything about the concrete transport behind it.
type API interface {
	// Connect establishes the physical session. Success is signalled
	// asynchronously through OnConnected.
	Connect(ctx context.Context) error
	// Disconnect tears the session down without firing OnDisconnected.
	Disconnect() error
	// Login submits credentials; the outcome arrives via OnLoginResult.
	Login(c Credentials) error
	// Subscribe requests one batch of securities for a kind on an exchange.
	// Per-security outcomes arrive via OnSubResult.
	Subscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error
	// Unsubscribe cancels previously requested securities.
	Unsubscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error
}
