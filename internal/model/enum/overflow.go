package enum

// OverflowPolicy defines bounded-queue behavior when full.
// Both policies count every dropped event; silent loss is not an option.
type OverflowPolicy uint8

const (
	// OverflowDropOldest evicts the head to make room for the new event.
	OverflowDropOldest OverflowPolicy = iota
	// OverflowRejectNewest refuses the incoming event.
	OverflowRejectNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDropOldest:
		return "drop_oldest"
	case OverflowRejectNewest:
		return "reject_newest"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy maps a config string to a policy. Hyphenated and
// underscored spellings are both accepted.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "drop_oldest", "drop-oldest":
		return OverflowDropOldest, true
	case "reject_newest", "reject-newest":
		return OverflowRejectNewest, true
	default:
		return OverflowDropOldest, false
	}
}
