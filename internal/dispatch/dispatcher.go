package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

// Handler consumes one event during fan-out. Handlers run sequentially on
// the dispatch goroutine; a slow handler delays everything behind it.
type Handler func(e model.Event)

// Token identifies a registered subscriber for later removal.
type Token uint64

type subscriber struct {
	token Token
	// kinds is the delivery filter; an all-false mask never matches, so
	// Register expands "no filter" to every kind.
	kinds [enum.KindCount]bool
	fn    Handler
}

// Dispatcher decouples the feed callback from subscribers through a bounded
// queue and fans queued events out in subscriber registration order.
type Dispatcher struct {
	metrics *obs.Metrics
	q       *queue
	done    chan struct{}

	mu   sync.RWMutex
	subs []subscriber
	next Token
}

// New builds a dispatcher with the given queue capacity and overflow policy.
func New(capacity int, policy enum.OverflowPolicy, metrics *obs.Metrics) *Dispatcher {
	return &Dispatcher{
		metrics: metrics,
		q:       newQueue(capacity, policy),
		done:    make(chan struct{}),
	}
}

// Register adds a subscriber for the given kinds. An empty kind list
// subscribes to every kind. Delivery order follows registration order.
func (d *Dispatcher) Register(kinds []enum.DataKind, fn Handler) (Token, error) {
	if fn == nil {
		return 0, exception.ErrNilHandler
	}
	var mask [enum.KindCount]bool
	if len(kinds) == 0 {
		for i := range mask {
			mask[i] = true
		}
	} else {
		for _, k := range kinds {
			if k.IsAvailable() {
				mask[int(k)] = true
			}
		}
	}

	d.mu.Lock()
	d.next++
	token := d.next
	d.subs = append(d.subs, subscriber{token: token, kinds: mask, fn: fn})
	d.mu.Unlock()
	return token, nil
}

// Unregister removes a subscriber. Unknown tokens are ignored.
func (d *Dispatcher) Unregister(token Token) {
	d.mu.Lock()
	// rebuild instead of shifting in place: Run may still be iterating the
	// old slice outside the lock
	subs := make([]subscriber, 0, len(d.subs))
	for _, s := range d.subs {
		if s.token != token {
			subs = append(subs, s)
		}
	}
	d.subs = subs
	d.mu.Unlock()
}

// OnRawEvent accepts one event from the feed callback. It never blocks;
// overflow is resolved by the queue policy and counted as a drop. Events
// arriving after Stop are discarded without counting.
func (d *Dispatcher) OnRawEvent(e model.Event) {
	d.metrics.ObserveEvent(e.Kind, e.RecvTsNano)
	if err := d.q.push(e); errors.Is(err, exception.ErrQueueOverflow) {
		d.metrics.IncQueueDrop()
	}
}

// Run drains the queue until Stop closes it, fanning each event out to the
// matching subscribers. A panicking handler is isolated: it is logged and
// counted, and delivery to the remaining subscribers continues.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for {
		e, ok := d.q.pop()
		if !ok {
			return
		}
		if !e.Kind.IsAvailable() {
			continue
		}

		d.mu.RLock()
		subs := d.subs
		d.mu.RUnlock()

		for _, s := range subs {
			if !s.kinds[int(e.Kind)] {
				continue
			}
			d.deliver(s, e)
		}
	}
}

func (d *Dispatcher) deliver(s subscriber, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncSubscriberError()
			logs.Errorf("subscriber %d panicked on %s %s: %v", s.token, e.Kind, e.SecurityID, r)
		}
	}()
	s.fn(e)
}

// Stop closes intake and waits for the queued events to drain, bounded by
// the context. Events still queued when the context expires are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.q.close()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth returns the number of events waiting in the queue.
func (d *Dispatcher) Depth() int {
	return d.q.len()
}
