package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

// Config holds the batching and retry policy for subscription requests.
type Config struct {
	// BatchSize is the maximum securities per transport request. Defaults to 100.
	BatchSize int
	// BatchTimeout is the pause between consecutive batches. Defaults to 1s.
	BatchTimeout time.Duration
	// MaxRetries bounds how often a rejected subscription is re-sent across
	// reconnects. Defaults to 3.
	MaxRetries int
}

// Record is the externally visible state of one subscription.
type Record struct {
	Key         model.SubKey
	Status      enum.SubStatus
	RequestedAt time.Time
	ConfirmedAt time.Time
	Retries     int
	// Err carries the cause while Status is failed: ErrSubscriptionRejected
	// for a feed refusal, or the wrapped transport error.
	Err error
}

type record struct {
	status      enum.SubStatus
	requestedAt time.Time
	confirmedAt time.Time
	retries     int
	err         error
}

type group struct {
	kind     enum.DataKind
	exchange enum.Exchange
}

// Manager tracks the desired subscription set and reconciles it against the
// feed session. Desired state survives disconnects; the transport state does
// not, so every session reset replays the full set.
type Manager struct {
	api     feed.API
	cfg     Config
	metrics *obs.Metrics

	mu      sync.Mutex
	records map[model.SubKey]*record
	// ready is true while a logged-in session can accept requests.
	ready bool
	// gen increments on session loss; in-flight batch runs abort when
	// their captured generation goes stale.
	gen    uint64
	closed bool
}

// New builds a subscription manager around the vendor feed capability.
func New(api feed.API, cfg Config, metrics *obs.Metrics) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Manager{
		api:     api,
		cfg:     cfg,
		metrics: metrics,
		records: make(map[model.SubKey]*record),
	}
}

// RequestSubscribe records the securities as desired and, when a session is
// ready, sends them in batches. Requests for already confirmed securities are
// absorbed silently. Without a ready session the request is only recorded and
// replayed by the next Reconcile.
func (m *Manager) RequestSubscribe(ctx context.Context, kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	if err := validate(kind, securities, exchange); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return exception.ErrSubscriptionClosed
	}
	now := time.Now()
	toSend := make([]string, 0, len(securities))
	for _, sec := range securities {
		key := model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}
		rec, ok := m.records[key]
		if ok && rec.status == enum.SubSubscribed {
			continue
		}
		if !ok {
			rec = &record{}
			m.records[key] = rec
		}
		rec.status = enum.SubPending
		rec.requestedAt = now
		rec.err = nil
		toSend = append(toSend, sec)
	}
	ready := m.ready
	gen := m.gen
	m.mu.Unlock()

	if !ready || len(toSend) == 0 {
		return nil
	}
	return m.sendBatches(ctx, kind, exchange, toSend, gen)
}

// RequestUnsubscribe removes the securities from the desired set. The
// transport request is best effort; the desired state changes regardless.
func (m *Manager) RequestUnsubscribe(ctx context.Context, kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	if err := validate(kind, securities, exchange); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return exception.ErrSubscriptionClosed
	}
	toSend := make([]string, 0, len(securities))
	for _, sec := range securities {
		key := model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}
		rec, ok := m.records[key]
		if !ok || rec.status == enum.SubUnsubscribed {
			continue
		}
		rec.status = enum.SubUnsubscribed
		toSend = append(toSend, sec)
	}
	ready := m.ready
	m.mu.Unlock()

	if !ready || len(toSend) == 0 {
		return nil
	}
	if err := m.api.Unsubscribe(kind, toSend, exchange); err != nil {
		return errors.Wrap(err, "send unsubscribe").
			With("kind", kind.String()).
			With("exchange", exchange.String())
	}
	return nil
}

// HandleSubResult is transport-driven: the per-security outcome of a
// subscribe request. Outcomes for securities no longer desired are ignored.
func (m *Manager) HandleSubResult(key model.SubKey, accepted bool) {
	m.mu.Lock()
	rec, ok := m.records[key]
	if !ok || rec.status == enum.SubUnsubscribed {
		m.mu.Unlock()
		return
	}
	if accepted {
		rec.status = enum.SubSubscribed
		rec.confirmedAt = time.Now()
		rec.err = nil
	} else {
		rec.status = enum.SubFailed
		rec.err = exception.ErrSubscriptionRejected
	}
	m.mu.Unlock()

	if accepted {
		m.metrics.IncSubOK(key.Kind)
	} else {
		m.metrics.IncSubFailed(key.Kind)
		logs.Warnf("subscription rejected: %s", key.String())
	}
}

// SessionLost marks the session unusable. Desired records are kept; pending
// batch runs abort at the next generation check.
func (m *Manager) SessionLost() {
	m.mu.Lock()
	m.ready = false
	m.gen++
	m.mu.Unlock()
}

// Reconcile replays the full desired set against a fresh logged-in session.
// Previously failed records are retried until their retry budget runs out.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return exception.ErrSubscriptionClosed
	}
	m.ready = true
	gen := m.gen
	now := time.Now()

	groups := make(map[group][]string)
	for key, rec := range m.records {
		switch rec.status {
		case enum.SubUnsubscribed:
			continue
		case enum.SubFailed:
			if rec.retries >= m.cfg.MaxRetries {
				continue
			}
			rec.retries++
		}
		rec.status = enum.SubPending
		rec.requestedAt = now
		rec.err = nil
		g := group{kind: key.Kind, exchange: key.Exchange}
		groups[g] = append(groups[g], key.SecurityID)
	}
	m.mu.Unlock()

	keys := make([]group, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].exchange < keys[j].exchange
	})

	var firstErr error
	for _, g := range keys {
		secs := groups[g]
		sort.Strings(secs)
		if err := m.sendBatches(ctx, g.kind, g.exchange, secs, gen); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status returns the lifecycle status of one subscription record.
func (m *Manager) Status(key model.SubKey) (enum.SubStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return 0, false
	}
	return rec.status, true
}

// Records returns a sorted snapshot of every tracked subscription.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	out := make([]Record, 0, len(m.records))
	for key, rec := range m.records {
		out = append(out, Record{
			Key:         key,
			Status:      rec.status,
			RequestedAt: rec.requestedAt,
			ConfirmedAt: rec.confirmedAt,
			Retries:     rec.retries,
			Err:         rec.err,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Shutdown stops accepting requests. Tracked records stay readable.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.ready = false
	m.mu.Unlock()
}

// sendBatches pushes the securities to the transport in BatchSize chunks,
// pausing BatchTimeout between chunks so the feed's request pacing holds.
// The run aborts silently once the captured session generation goes stale.
func (m *Manager) sendBatches(ctx context.Context, kind enum.DataKind, exchange enum.Exchange, securities []string, gen uint64) error {
	var firstErr error
	for start := 0; start < len(securities); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(securities) {
			end = len(securities)
		}
		chunk := securities[start:end]

		m.mu.Lock()
		stale := m.closed || !m.ready || m.gen != gen
		m.mu.Unlock()
		if stale {
			return firstErr
		}

		if err := m.api.Subscribe(kind, chunk, exchange); err != nil {
			wrapped := errors.Wrap(err, "send subscribe").
				With("kind", kind.String()).
				With("exchange", exchange.String())
			m.markFailed(kind, exchange, chunk, wrapped)
			if firstErr == nil {
				firstErr = wrapped
			}
			continue
		}

		if end < len(securities) {
			t := time.NewTimer(m.cfg.BatchTimeout)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return firstErr
}

func (m *Manager) markFailed(kind enum.DataKind, exchange enum.Exchange, securities []string, cause error) {
	m.mu.Lock()
	for _, sec := range securities {
		key := model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}
		if rec, ok := m.records[key]; ok && rec.status == enum.SubPending {
			rec.status = enum.SubFailed
			rec.err = cause
		}
	}
	m.mu.Unlock()
}

func validate(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	if !kind.IsAvailable() || !exchange.IsAvailable() || !kind.SupportedOn(exchange) {
		return errors.Wrap(exception.ErrSubscriptionInvalid, "validate request").
			With("kind", kind.String()).
			With("exchange", exchange.String())
	}
	if len(securities) == 0 {
		return exception.ErrNoSecurities
	}
	return nil
}
