package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
)

func event(kind enum.DataKind, sec string, seq int64) model.Event {
	return model.Event{
		Kind:       kind,
		Exchange:   enum.ExchangeSZSE,
		SecurityID: sec,
		Seq:        seq,
		RecvTsNano: time.Now().UnixNano(),
	}
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) handle(e model.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDeliveryPreservesArrivalOrder(t *testing.T) {
	d := New(1000, enum.OverflowDropOldest, obs.NewMetrics())
	var rec recorder
	_, err := d.Register(nil, rec.handle)
	require.NoError(t, err)

	for i := int64(1); i <= 500; i++ {
		d.OnRawEvent(event(enum.KindTransaction, "000001", i))
	}
	go d.Run()
	drain(t, d)

	events := rec.snapshot()
	require.Len(t, events, 500)
	for i, e := range events {
		require.Equalf(t, int64(i+1), e.Seq, "event %d out of order", i)
	}
}

func TestDropOldestCountsEvictions(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(100, enum.OverflowDropOldest, metrics)

	for i := int64(1); i <= 250; i++ {
		d.OnRawEvent(event(enum.KindSnapshot, "000001", i))
	}
	assert.Equal(t, uint64(150), metrics.QueueDrops())
	assert.Equal(t, 100, d.Depth())

	var rec recorder
	_, err := d.Register(nil, rec.handle)
	require.NoError(t, err)
	go d.Run()
	drain(t, d)

	events := rec.snapshot()
	require.Len(t, events, 100)
	assert.Equal(t, int64(151), events[0].Seq, "the oldest events must be the evicted ones")
	assert.Equal(t, int64(250), events[99].Seq)
}

func TestRejectNewestKeepsHead(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(10, enum.OverflowRejectNewest, metrics)

	for i := int64(1); i <= 15; i++ {
		d.OnRawEvent(event(enum.KindSnapshot, "000001", i))
	}
	assert.Equal(t, uint64(5), metrics.QueueDrops())

	var rec recorder
	_, err := d.Register(nil, rec.handle)
	require.NoError(t, err)
	go d.Run()
	drain(t, d)

	events := rec.snapshot()
	require.Len(t, events, 10)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(10), events[9].Seq)
}

func TestFanOutFollowsRegistrationOrder(t *testing.T) {
	d := New(10, enum.OverflowDropOldest, obs.NewMetrics())

	var (
		mu    sync.Mutex
		order []string
	)
	_, err := d.Register(nil, func(model.Event) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	require.NoError(t, err)
	_, err = d.Register(nil, func(model.Event) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})
	require.NoError(t, err)

	d.OnRawEvent(event(enum.KindSnapshot, "000001", 1))
	go d.Run()
	drain(t, d)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestKindFilter(t *testing.T) {
	d := New(10, enum.OverflowDropOldest, obs.NewMetrics())
	var rec recorder
	_, err := d.Register([]enum.DataKind{enum.KindTransaction}, rec.handle)
	require.NoError(t, err)

	d.OnRawEvent(event(enum.KindSnapshot, "000001", 1))
	d.OnRawEvent(event(enum.KindTransaction, "000001", 2))
	go d.Run()
	drain(t, d)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, enum.KindTransaction, events[0].Kind)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(10, enum.OverflowDropOldest, metrics)

	_, err := d.Register(nil, func(model.Event) {
		panic("boom")
	})
	require.NoError(t, err)
	var rec recorder
	_, err = d.Register(nil, rec.handle)
	require.NoError(t, err)

	d.OnRawEvent(event(enum.KindSnapshot, "000001", 1))
	d.OnRawEvent(event(enum.KindSnapshot, "000001", 2))
	go d.Run()
	drain(t, d)

	assert.Len(t, rec.snapshot(), 2, "the healthy subscriber keeps receiving")
	assert.Equal(t, uint64(2), metrics.Snapshot().SubscriberErrors)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	d := New(10, enum.OverflowDropOldest, obs.NewMetrics())
	var rec recorder
	token, err := d.Register(nil, rec.handle)
	require.NoError(t, err)
	d.Unregister(token)

	d.OnRawEvent(event(enum.KindSnapshot, "000001", 1))
	go d.Run()
	drain(t, d)

	assert.Empty(t, rec.snapshot())
}

func TestNilHandlerRejected(t *testing.T) {
	d := New(10, enum.OverflowDropOldest, obs.NewMetrics())
	_, err := d.Register(nil, nil)
	assert.Error(t, err)
}

func TestEventsAfterStopAreDiscarded(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(10, enum.OverflowDropOldest, metrics)
	var rec recorder
	_, err := d.Register(nil, rec.handle)
	require.NoError(t, err)

	go d.Run()
	drain(t, d)

	d.OnRawEvent(event(enum.KindSnapshot, "000001", 1))
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 0, d.Depth())
	assert.Equal(t, uint64(0), metrics.QueueDrops(), "discarding after stop is not an overflow drop")
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	d := New(100, enum.OverflowDropOldest, obs.NewMetrics())
	var rec recorder
	_, err := d.Register(nil, rec.handle)
	require.NoError(t, err)

	for i := int64(1); i <= 50; i++ {
		d.OnRawEvent(event(enum.KindIndex, "000300", i))
	}
	go d.Run()
	drain(t, d)

	assert.Len(t, rec.snapshot(), 50, "accepted events must be delivered before stop returns")
	assert.Equal(t, 0, d.Depth())
}
