package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

func snapshotEvent(sec string, seq int64) model.Event {
	return model.Event{
		Kind:        enum.KindSnapshot,
		Exchange:    enum.ExchangeSZSE,
		SecurityID:  sec,
		Seq:         seq,
		EventTsNano: 1000,
		RecvTsNano:  2000,
		Payload: &model.Snapshot{
			SecurityID: sec,
			LastPrice:  decimal.Decimal("10.52"),
			Volume:     1200,
			Turnover:   decimal.Decimal("12624.00"),
		},
	}
}

func TestHandleBuffersUntilBatchSize(t *testing.T) {
	w := NewWriter(nil, Config{BatchSize: 100})

	for i := int64(1); i <= 5; i++ {
		w.Handle(snapshotEvent("000001", i))
	}
	assert.Equal(t, 5, w.Pending())
}

func TestHandleIgnoresUnknownPayload(t *testing.T) {
	w := NewWriter(nil, Config{BatchSize: 100})
	w.Handle(model.Event{Kind: enum.KindSnapshot, Payload: "not a payload"})
	assert.Equal(t, 0, w.Pending())
}

func TestTakeDrainsEveryBuffer(t *testing.T) {
	w := NewWriter(nil, Config{BatchSize: 100})

	w.Handle(snapshotEvent("000001", 1))
	w.Handle(model.Event{
		Kind: enum.KindTransaction, Exchange: enum.ExchangeSZSE, SecurityID: "000001", Seq: 2,
		Payload: &model.Transaction{Price: decimal.Decimal("10.52"), Volume: 100, TradeType: "F"},
	})
	w.Handle(model.Event{
		Kind: enum.KindOrderDetail, Exchange: enum.ExchangeSZSE, SecurityID: "000001", Seq: 3,
		Payload: &model.OrderDetail{OrderNo: 7, Price: decimal.Decimal("10.52"), Side: "B"},
	})
	w.Handle(model.Event{
		Kind: enum.KindIndex, Exchange: enum.ExchangeSZSE, SecurityID: "000300", Seq: 4,
		Payload: &model.Index{LastIndex: decimal.Decimal("3500.12")},
	})
	w.Handle(model.Event{
		Kind: enum.KindNGTSTick, Exchange: enum.ExchangeSSE, SecurityID: "600000", Seq: 5,
		Payload: &model.NGTSTick{TickType: "T", Price: decimal.Decimal("9.10")},
	})
	require.Equal(t, 5, w.Pending())

	w.mu.Lock()
	b := w.takeLocked()
	w.mu.Unlock()
	require.NotNil(t, b)
	assert.Len(t, b.snapshots, 1)
	assert.Len(t, b.transactions, 1)
	assert.Len(t, b.orderDetails, 1)
	assert.Len(t, b.indexes, 1)
	assert.Len(t, b.ngtsTicks, 1)
	assert.Equal(t, 0, w.Pending())
}

func TestSnapshotRowMapping(t *testing.T) {
	e := snapshotEvent("000001", 42)
	row := snapshotRow(e, e.Payload.(*model.Snapshot))

	assert.Equal(t, "000001", row.SecurityID)
	assert.Equal(t, "SZSE", row.Exchange)
	assert.Equal(t, "snapshot", row.Kind)
	assert.Equal(t, int64(42), row.Seq)
	assert.Equal(t, "10.52", row.LastPrice)
	assert.Equal(t, "12624.00", row.Turnover)
	assert.Equal(t, int64(1000), row.EventTs)
	assert.Equal(t, int64(2000), row.RecvTs)
	assert.NotEmpty(t, row.Bids)
	assert.NotEmpty(t, row.Asks)
}

func TestTransactionRowMapping(t *testing.T) {
	e := model.Event{
		Kind: enum.KindTransaction, Exchange: enum.ExchangeSZSE, SecurityID: "000001",
		Seq: 9, EventTsNano: 10, RecvTsNano: 20,
		Payload: &model.Transaction{
			Price: decimal.Decimal("10.52"), Volume: 100, BuyNo: 5, SellNo: 6, TradeType: "F",
		},
	}
	row := transactionRow(e, e.Payload.(*model.Transaction))

	assert.Equal(t, "10.52", row.Price)
	assert.Equal(t, int64(100), row.Volume)
	assert.Equal(t, int64(5), row.BuyNo)
	assert.Equal(t, int64(6), row.SellNo)
	assert.Equal(t, "F", row.TradeType)
}
