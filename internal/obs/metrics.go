package obs

import (
	"sync/atomic"

	"main/internal/model/enum"
)

// Metrics collects lightweight counters for the ingestion subsystem.
// All writers are hot paths; everything is a plain atomic.
type Metrics struct {
	connAttempts  uint64
	connSuccesses uint64
	connFailures  uint64
	reconnects    uint64
	loginFailures uint64

	eventCounts [enum.KindCount]uint64
	subOK       [enum.KindCount]uint64
	subFailed   [enum.KindCount]uint64

	queueDrops       uint64
	subscriberErrors uint64
	lastEventTsNano  int64
}

// Snapshot is an immutable point-in-time copy of the counters.
type Snapshot struct {
	ConnAttempts  uint64
	ConnSuccesses uint64
	ConnFailures  uint64
	Reconnects    uint64
	LoginFailures uint64

	EventCounts map[enum.DataKind]uint64
	SubOK       map[enum.DataKind]uint64
	SubFailed   map[enum.DataKind]uint64

	QueueDepth       int
	QueueDrops       uint64
	SubscriberErrors uint64
	LastEventTsNano  int64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncConnAttempt records a connect attempt.
func (m *Metrics) IncConnAttempt() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.connAttempts, 1)
}

// IncConnSuccess records an established session.
func (m *Metrics) IncConnSuccess() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.connSuccesses, 1)
}

// IncConnFailure records a failed connect attempt.
func (m *Metrics) IncConnFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.connFailures, 1)
}

// IncReconnect records a disconnect that entered the reconnect machinery.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// IncLoginFailure records a rejected login.
func (m *Metrics) IncLoginFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.loginFailures, 1)
}

// ObserveEvent counts one inbound event and stamps the staleness clock.
func (m *Metrics) ObserveEvent(kind enum.DataKind, recvTsNano int64) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if recvTsNano > 0 {
		atomic.StoreInt64(&m.lastEventTsNano, recvTsNano)
	}
}

// IncSubOK records a confirmed subscription for the kind.
func (m *Metrics) IncSubOK(kind enum.DataKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.subOK) {
		atomic.AddUint64(&m.subOK[idx], 1)
	}
}

// IncSubFailed records a rejected subscription for the kind.
func (m *Metrics) IncSubFailed(kind enum.DataKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.subFailed) {
		atomic.AddUint64(&m.subFailed[idx], 1)
	}
}

// IncQueueDrop records one dropped event. Every overflow is counted here,
// whichever policy evicted it.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncSubscriberError records a handler failure during fan-out.
func (m *Metrics) IncSubscriberError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.subscriberErrors, 1)
}

// QueueDrops returns the dropped-event count.
func (m *Metrics) QueueDrops() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.queueDrops)
}

// LastEventTsNano returns the receive timestamp of the newest event.
func (m *Metrics) LastEventTsNano() int64 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt64(&m.lastEventTsNano)
}

// Snapshot returns a copy of the current counter values.
// QueueDepth is owned by the dispatcher and filled in by the caller.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		ConnAttempts:     atomic.LoadUint64(&m.connAttempts),
		ConnSuccesses:    atomic.LoadUint64(&m.connSuccesses),
		ConnFailures:     atomic.LoadUint64(&m.connFailures),
		Reconnects:       atomic.LoadUint64(&m.reconnects),
		LoginFailures:    atomic.LoadUint64(&m.loginFailures),
		EventCounts:      make(map[enum.DataKind]uint64),
		SubOK:            make(map[enum.DataKind]uint64),
		SubFailed:        make(map[enum.DataKind]uint64),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		SubscriberErrors: atomic.LoadUint64(&m.subscriberErrors),
		LastEventTsNano:  atomic.LoadInt64(&m.lastEventTsNano),
	}
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			snap.EventCounts[enum.DataKind(i)] = v
		}
	}
	for i := range m.subOK {
		if v := atomic.LoadUint64(&m.subOK[i]); v > 0 {
			snap.SubOK[enum.DataKind(i)] = v
		}
	}
	for i := range m.subFailed {
		if v := atomic.LoadUint64(&m.subFailed[i]); v > 0 {
			snap.SubFailed[enum.DataKind(i)] = v
		}
	}
	return snap
}
