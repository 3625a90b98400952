package service

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/connection"
	"main/internal/dispatch"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/subscription"
	"main/pkg/exception"
)

// Option assembles the per-component configuration.
type Option struct {
	Conn      connection.Config
	Sub       subscription.Config
	QueueSize int
	Overflow  enum.OverflowPolicy
	// MaxQuietTime forces a reconnect when the feed stays silent that long
	// while the session looks live. Zero disables the watchdog.
	MaxQuietTime time.Duration
	// WatchdogTick is the staleness check interval. Defaults to 10s.
	WatchdogTick time.Duration
}

// Service wires the connection, subscription and dispatch managers into one
// ingestion pipeline and owns its lifecycle.
type Service struct {
	opt     Option
	metrics *obs.Metrics
	disp    *dispatch.Dispatcher

	api  feed.API
	conn *connection.Manager
	subs *subscription.Manager

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	wg    sync.WaitGroup
	fatal chan error
}

// New builds the service. Bind the transport before starting.
func New(opt Option) *Service {
	if opt.WatchdogTick <= 0 {
		opt.WatchdogTick = 10 * time.Second
	}
	metrics := obs.NewMetrics()
	return &Service{
		opt:     opt,
		metrics: metrics,
		disp:    dispatch.New(opt.QueueSize, opt.Overflow, metrics),
		fatal:   make(chan error, 1),
	}
}

// Callbacks returns the transport callback set. The closures resolve the
// managers at call time, so the transport may be built before Bind.
func (s *Service) Callbacks() feed.Callbacks {
	return feed.Callbacks{
		OnConnected:    func() { s.conn.HandleConnected() },
		OnDisconnected: func(reason int) { s.conn.HandleDisconnected(reason) },
		OnLoginResult:  func(err error) { s.conn.HandleLoginResult(err) },
		OnSubResult:    func(key model.SubKey, accepted bool) { s.subs.HandleSubResult(key, accepted) },
		OnEvent:        func(e model.Event) { s.disp.OnRawEvent(e) },
	}
}

// Bind attaches the transport and builds the managers around it.
func (s *Service) Bind(api feed.API) {
	s.api = api
	s.subs = subscription.New(api, s.opt.Sub, s.metrics)
	s.conn = connection.New(api, s.opt.Conn, s.metrics, connection.Hooks{
		OnReady: s.onReady,
		OnDown:  s.onDown,
		OnFatal: s.onFatal,
	})
}

// Start launches the pipeline and initiates the first connect. A transient
// connect failure is not an error here: the retry machinery owns it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.api == nil {
		s.mu.Unlock()
		return exception.ErrNotConnected
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.disp.Run()
	}()

	if s.opt.MaxQuietTime > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watchdog(runCtx)
		}()
	}

	if err := s.conn.Connect(runCtx); err != nil {
		if exception.FatalConnection(err) {
			return err
		}
		logs.Warnf("initial connect failed, retrying: %v", err)
	}
	return nil
}

// Stop shuts the pipeline down in order: no new requests, a bounded drain of
// the queued events, then the physical link comes down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.subs.Shutdown()
	err := s.disp.Stop(ctx)
	s.conn.Close()
	s.wg.Wait()
	return err
}

// RegisterSubscriber adds a fan-out handler for the given kinds.
func (s *Service) RegisterSubscriber(kinds []enum.DataKind, fn dispatch.Handler) (dispatch.Token, error) {
	return s.disp.Register(kinds, fn)
}

// UnregisterSubscriber removes a fan-out handler.
func (s *Service) UnregisterSubscriber(token dispatch.Token) {
	s.disp.Unregister(token)
}

// RequestSubscribe forwards a subscribe request to the subscription manager.
func (s *Service) RequestSubscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	return s.subs.RequestSubscribe(s.runCtx(), kind, securities, exchange)
}

// RequestUnsubscribe forwards an unsubscribe request.
func (s *Service) RequestUnsubscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	return s.subs.RequestUnsubscribe(s.runCtx(), kind, securities, exchange)
}

// SubscriptionStatus returns the lifecycle status of one record.
func (s *Service) SubscriptionStatus(key model.SubKey) (enum.SubStatus, bool) {
	return s.subs.Status(key)
}

// Subscriptions returns a snapshot of every tracked subscription.
func (s *Service) Subscriptions() []subscription.Record {
	return s.subs.Records()
}

// State returns the current session state.
func (s *Service) State() enum.ConnState {
	return s.conn.State()
}

// ForceReconnect drops the session and redials immediately.
func (s *Service) ForceReconnect() {
	s.conn.ForceReconnect()
}

// Reset clears a terminally failed session so Connect may run again.
func (s *Service) Reset() {
	s.conn.Reset()
}

// Connect re-initiates the session, for use after Reset.
func (s *Service) Connect() error {
	return s.conn.Connect(s.runCtx())
}

// Stats returns the counter snapshot with the live queue depth filled in.
func (s *Service) Stats() obs.Snapshot {
	snap := s.metrics.Snapshot()
	snap.QueueDepth = s.disp.Depth()
	return snap
}

// Fatal delivers the terminal session error, once.
func (s *Service) Fatal() <-chan error {
	return s.fatal
}

// onReady replays the desired subscription set on its own goroutine; the
// transport callback that triggered it must not block on batch pacing.
func (s *Service) onReady() {
	ctx := s.runCtx()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.subs.Reconcile(ctx); err != nil {
			logs.Warnf("subscription reconcile: %v", err)
		}
	}()
}

func (s *Service) onDown() {
	s.subs.SessionLost()
}

func (s *Service) onFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

// watchdog forces a reconnect when a live session delivers nothing for
// MaxQuietTime. A session that looks healthy but carries no data is
// indistinguishable from a dead one at the application level.
func (s *Service) watchdog(ctx context.Context) {
	ticker := time.NewTicker(s.opt.WatchdogTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.conn.State().Live() {
			continue
		}
		// the quiet window is per session: LastConnect is refreshed on every
		// (re)connect, so a pre-reconnect event timestamp must not keep
		// declaring a fresh session stale
		base := s.conn.LastConnect()
		if last := s.metrics.LastEventTsNano(); last > 0 {
			if t := time.Unix(0, last); t.After(base) {
				base = t
			}
		}
		if base.IsZero() || time.Since(base) < s.opt.MaxQuietTime {
			continue
		}
		logs.Warnf("no feed data for %s, forcing reconnect", time.Since(base).Truncate(time.Second))
		s.conn.ForceReconnect()
	}
}

func (s *Service) runCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}
