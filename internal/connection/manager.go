package connection

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

// Config holds the connection policy for one feed session.
type Config struct {
	// Multicast sessions carry no credentials and skip the login exchange.
	Multicast   bool
	Credentials feed.Credentials
	// MaxReconnectAttempts bounds consecutive automatic retries before the
	// session fails terminally. Defaults to 10.
	MaxReconnectAttempts int
	Backoff              Backoff
}

// Hooks let the orchestrator react to session transitions.
// They are invoked without the manager lock held.
type Hooks struct {
	// OnReady fires once per successful (re)connection, after login.
	OnReady func()
	// OnDown fires when a live session is lost.
	OnDown func()
	// OnFatal fires when the session enters the terminal failed state.
	OnFatal func(err error)
}

// Manager owns the physical feed session lifecycle: connect, login,
// disconnect detection and the backoff reconnect machinery. The session
// object lives for the process lifetime; only its state cycles.
type Manager struct {
	api     feed.API
	cfg     Config
	metrics *obs.Metrics
	hooks   Hooks

	mu          sync.Mutex
	ctx         context.Context
	state       enum.ConnState
	attempt     int
	retry       *time.Timer
	lastConnect time.Time
	closed      bool
}

// New builds a connection manager around the vendor feed capability.
func New(api feed.API, cfg Config, metrics *obs.Metrics, hooks Hooks) *Manager {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Manager{
		api:     api,
		cfg:     cfg,
		metrics: metrics,
		hooks:   hooks,
		state:   enum.ConnDisconnected,
	}
}

// Connect initiates the physical connection. A manually initiated connect
// cancels any pending reconnect timer. Returns ErrSessionFailed until the
// operator resets a terminally failed session.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return exception.ErrManagerClosed
	}
	if m.state == enum.ConnFailed {
		m.mu.Unlock()
		return exception.ErrSessionFailed
	}
	if m.state.Live() || m.state == enum.ConnConnecting {
		m.mu.Unlock()
		return nil
	}
	m.cancelRetryLocked()
	m.ctx = ctx
	m.state = enum.ConnConnecting
	m.mu.Unlock()

	return m.dial(ctx)
}

// HandleConnected is transport-driven: the low-level connect succeeded.
func (m *Manager) HandleConnected() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = enum.ConnConnected
	m.lastConnect = time.Now()
	multicast := m.cfg.Multicast
	creds := m.cfg.Credentials
	m.mu.Unlock()

	m.metrics.IncConnSuccess()
	logs.Info("feed session established")

	if multicast {
		// the broadcast group has no auth exchange
		m.HandleLoginResult(nil)
		return
	}
	if err := m.api.Login(creds); err != nil {
		logs.Warnf("login send failed: %v", err)
		_ = m.api.Disconnect()
		m.scheduleRetry()
	}
}

// HandleLoginResult is transport-driven. A rejected login is terminal:
// credentials do not self-correct, so there is no retry.
func (m *Manager) HandleLoginResult(err error) {
	if err != nil {
		m.metrics.IncLoginFailure()
		_ = m.api.Disconnect()
		m.fail(err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = enum.ConnLoggedIn
	m.attempt = 0
	ready := m.hooks.OnReady
	m.mu.Unlock()

	logs.Info("feed login ok")
	if ready != nil {
		ready()
	}
}

// HandleDisconnected is transport-driven. Losing an established session is
// not an operator-level error; it enters the reconnect machinery and only
// surfaces once retries exhaust.
func (m *Manager) HandleDisconnected(reason int) {
	m.mu.Lock()
	if m.closed || m.state == enum.ConnFailed {
		m.mu.Unlock()
		return
	}
	wasLive := m.state.Live()
	down := m.hooks.OnDown
	m.mu.Unlock()

	logs.Warnf("feed disconnected, reason %d", reason)
	if wasLive {
		m.metrics.IncReconnect()
		if down != nil {
			down()
		}
	}
	m.scheduleRetry()
}

// ForceReconnect drops the current session and redials immediately with the
// attempt counter cleared. The staleness watchdog uses this path.
func (m *Manager) ForceReconnect() {
	m.mu.Lock()
	if m.closed || m.state == enum.ConnFailed {
		m.mu.Unlock()
		return
	}
	m.cancelRetryLocked()
	m.attempt = 0
	wasLive := m.state.Live()
	down := m.hooks.OnDown
	m.state = enum.ConnReconnecting
	ctx := m.runCtxLocked()
	m.mu.Unlock()

	logs.Warn("forcing feed reconnect")
	m.metrics.IncReconnect()
	if wasLive && down != nil {
		down()
	}
	_ = m.api.Disconnect()
	_ = m.dial(ctx)
}

// Reset clears the terminal failed state. It is the explicit operator
// action; nothing resets automatically. The caller reconnects afterwards.
func (m *Manager) Reset() {
	m.mu.Lock()
	if m.state == enum.ConnFailed {
		m.state = enum.ConnDisconnected
		m.attempt = 0
	}
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() enum.ConnState {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	return state
}

// Attempt returns the current reconnect attempt counter.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	attempt := m.attempt
	m.mu.Unlock()
	return attempt
}

// RetryPending reports whether a reconnect timer is armed.
func (m *Manager) RetryPending() bool {
	m.mu.Lock()
	pending := m.retry != nil
	m.mu.Unlock()
	return pending
}

// LastConnect returns the timestamp of the last successful connect.
func (m *Manager) LastConnect() time.Time {
	m.mu.Lock()
	t := m.lastConnect
	m.mu.Unlock()
	return t
}

// Close cancels any pending retry and tears the session down.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelRetryLocked()
	m.state = enum.ConnDisconnected
	m.mu.Unlock()
	_ = m.api.Disconnect()
}

func (m *Manager) dial(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.metrics.IncConnAttempt()
	if err := m.api.Connect(ctx); err != nil {
		m.metrics.IncConnFailure()
		if exception.FatalConnection(err) {
			m.fail(err)
			return err
		}
		logs.Warnf("feed connect failed: %v", err)
		m.scheduleRetry()
		return err
	}
	return nil
}

func (m *Manager) scheduleRetry() {
	m.mu.Lock()
	if m.closed || m.state == enum.ConnFailed || m.retry != nil {
		m.mu.Unlock()
		return
	}
	m.attempt++
	if m.attempt > m.cfg.MaxReconnectAttempts {
		m.cancelRetryLocked()
		m.state = enum.ConnFailed
		fatal := m.hooks.OnFatal
		m.mu.Unlock()

		logs.Errorf("feed reconnect exhausted after %d attempts", m.cfg.MaxReconnectAttempts)
		if fatal != nil {
			fatal(exception.ErrReconnectExhausted)
		}
		return
	}
	m.state = enum.ConnReconnecting
	attempt := m.attempt
	delay := m.cfg.Backoff.Next(attempt)
	m.retry = time.AfterFunc(delay, m.retryExpired)
	m.mu.Unlock()

	logs.Infof("feed reconnect %d/%d in %s", attempt, m.cfg.MaxReconnectAttempts, delay)
}

func (m *Manager) retryExpired() {
	m.mu.Lock()
	if m.closed || m.state == enum.ConnFailed {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	ctx := m.runCtxLocked()
	m.mu.Unlock()

	_ = m.api.Disconnect()
	_ = m.dial(ctx)
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.cancelRetryLocked()
	m.state = enum.ConnFailed
	fatal := m.hooks.OnFatal
	m.mu.Unlock()

	logs.Errorf("feed session failed: %+v", err)
	if fatal != nil {
		fatal(err)
	}
}

func (m *Manager) cancelRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) runCtxLocked() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}
