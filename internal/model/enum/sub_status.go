package enum

// SubStatus is the lifecycle status of a subscription record.
type SubStatus uint8

const (
	SubPending SubStatus = iota
	SubSubscribed
	SubFailed
	SubUnsubscribed
)

func (s SubStatus) String() string {
	switch s {
	case SubPending:
		return "pending"
	case SubSubscribed:
		return "subscribed"
	case SubFailed:
		return "failed"
	case SubUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}
