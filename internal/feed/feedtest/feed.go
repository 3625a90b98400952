package feedtest

import (
	"context"
	"sync"
	"time"

	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// SubCall records one subscribe or unsubscribe request with its send time,
// so tests can assert on batching and pacing.
type SubCall struct {
	Kind       enum.DataKind
	Exchange   enum.Exchange
	Securities []string
	At         time.Time
}

// Feed is a scripted in-memory feed for tests. Callbacks fire synchronously
// on the caller's goroutine, so a test sees every effect of a call once the
// call returns.
type Feed struct {
	mu sync.Mutex
	cb feed.Callbacks

	connectErr   error
	loginErr     error
	rejectLogin  bool
	subscribeErr error
	autoAccept   bool
	rejectKeys   map[model.SubKey]bool

	connected    bool
	loggedIn     bool
	connectCalls int
	subCalls     []SubCall
	unsubCalls   []SubCall
}

// New builds an idle fake. Bind the callbacks before connecting.
func New() *Feed {
	return &Feed{
		autoAccept: true,
		rejectKeys: make(map[model.SubKey]bool),
	}
}

// Bind installs the callback set, normally the service wiring under test.
func (f *Feed) Bind(cb feed.Callbacks) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

// SetConnectErr makes subsequent Connect calls fail with err.
func (f *Feed) SetConnectErr(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

// SetLoginErr makes subsequent Login calls fail with err.
func (f *Feed) SetLoginErr(err error) {
	f.mu.Lock()
	f.loginErr = err
	f.mu.Unlock()
}

// SetRejectLogin makes the scripted gateway reject the next login.
func (f *Feed) SetRejectLogin(reject bool) {
	f.mu.Lock()
	f.rejectLogin = reject
	f.mu.Unlock()
}

// SetSubscribeErr makes subsequent Subscribe calls fail with err.
func (f *Feed) SetSubscribeErr(err error) {
	f.mu.Lock()
	f.subscribeErr = err
	f.mu.Unlock()
}

// SetAutoAccept toggles the synchronous per-security acks. Disabled, the
// test drives acks itself through AckSub.
func (f *Feed) SetAutoAccept(accept bool) {
	f.mu.Lock()
	f.autoAccept = accept
	f.mu.Unlock()
}

// RejectKey makes auto-acks refuse one security.
func (f *Feed) RejectKey(key model.SubKey) {
	f.mu.Lock()
	f.rejectKeys[key] = true
	f.mu.Unlock()
}

func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	if err := f.connectErr; err != nil {
		f.mu.Unlock()
		return err
	}
	f.connected = true
	cb := f.cb
	f.mu.Unlock()

	if cb.OnConnected != nil {
		cb.OnConnected()
	}
	return nil
}

func (f *Feed) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.loggedIn = false
	f.mu.Unlock()
	return nil
}

func (f *Feed) Login(c feed.Credentials) error {
	f.mu.Lock()
	if err := f.loginErr; err != nil {
		f.mu.Unlock()
		return err
	}
	reject := f.rejectLogin
	if !reject {
		f.loggedIn = true
	}
	cb := f.cb
	f.mu.Unlock()

	if cb.OnLoginResult == nil {
		return nil
	}
	if reject {
		cb.OnLoginResult(exception.ErrLoginRejected)
	} else {
		cb.OnLoginResult(nil)
	}
	return nil
}

func (f *Feed) Subscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	f.mu.Lock()
	if err := f.subscribeErr; err != nil {
		f.mu.Unlock()
		return err
	}
	f.subCalls = append(f.subCalls, SubCall{
		Kind:       kind,
		Exchange:   exchange,
		Securities: append([]string(nil), securities...),
		At:         time.Now(),
	})
	autoAccept := f.autoAccept
	cb := f.cb
	rejected := make([]bool, len(securities))
	for i, sec := range securities {
		rejected[i] = f.rejectKeys[model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}]
	}
	f.mu.Unlock()

	if !autoAccept || cb.OnSubResult == nil {
		return nil
	}
	for i, sec := range securities {
		key := model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}
		cb.OnSubResult(key, !rejected[i])
	}
	return nil
}

func (f *Feed) Unsubscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	f.mu.Lock()
	f.unsubCalls = append(f.unsubCalls, SubCall{
		Kind:       kind,
		Exchange:   exchange,
		Securities: append([]string(nil), securities...),
		At:         time.Now(),
	})
	f.mu.Unlock()
	return nil
}

// AckSub drives one per-security outcome by hand.
func (f *Feed) AckSub(key model.SubKey, accepted bool) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnSubResult != nil {
		cb.OnSubResult(key, accepted)
	}
}

// Push delivers one scripted event.
func (f *Feed) Push(e model.Event) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnEvent != nil {
		cb.OnEvent(e)
	}
}

// DropLink simulates the gateway closing the session.
func (f *Feed) DropLink(reason int) {
	f.mu.Lock()
	f.connected = false
	f.loggedIn = false
	cb := f.cb
	f.mu.Unlock()
	if cb.OnDisconnected != nil {
		cb.OnDisconnected(reason)
	}
}

// Connected reports the fake link state.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// ConnectCalls returns how often Connect was attempted.
func (f *Feed) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

// SubCalls returns a copy of the recorded subscribe requests.
func (f *Feed) SubCalls() []SubCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubCall(nil), f.subCalls...)
}

// UnsubCalls returns a copy of the recorded unsubscribe requests.
func (f *Feed) UnsubCalls() []SubCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubCall(nil), f.unsubCalls...)
}
