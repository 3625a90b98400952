package dispatch

import (
	"sync"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// queue is a bounded ring buffer between the feed callback and the fan-out
// loop. Push never blocks: the feed's read goroutine must not stall, so a
// full buffer is resolved by the overflow policy instead of backpressure.
//
// Close stops intake but keeps buffered events poppable, so shutdown can
// drain what was already accepted.
type queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	buf      []model.Event
	head     int
	tail     int
	size     int
	closed   bool
	policy   enum.OverflowPolicy
}

func newQueue(capacity int, policy enum.OverflowPolicy) *queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &queue{
		buf:    make([]model.Event, capacity),
		policy: policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// push enqueues the event. It returns ErrQueueOverflow when an event was
// lost in the process, either the evicted oldest one or the pushed one, and
// ErrDispatcherClosed once intake has stopped.
func (q *queue) push(e model.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return exception.ErrDispatcherClosed
	}
	var err error
	if q.size == len(q.buf) {
		if q.policy == enum.OverflowRejectNewest {
			return exception.ErrQueueOverflow
		}
		// drop-oldest: evict the head to make room
		q.buf[q.head] = model.Event{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		err = exception.ErrQueueOverflow
	}
	q.buf[q.tail] = e
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	q.notEmpty.Signal()
	return err
}

// pop blocks until an event is available. After Close it keeps returning
// buffered events and reports false only once the buffer is empty.
func (q *queue) pop() (model.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.size > 0 {
			e := q.buf[q.head]
			q.buf[q.head] = model.Event{}
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			return e, true
		}
		if q.closed {
			return model.Event{}, false
		}
		q.notEmpty.Wait()
	}
}

func (q *queue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.notEmpty.Broadcast()
	}
	q.mu.Unlock()
}

func (q *queue) len() int {
	q.mu.Lock()
	size := q.size
	q.mu.Unlock()
	return size
}
