package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/model"
)

// Config holds the write buffering policy.
type Config struct {
	// BatchSize triggers a flush once this many rows are buffered. Defaults to 100.
	BatchSize int
	// FlushInterval flushes a partial buffer at the latest. Defaults to 1s.
	FlushInterval time.Duration
}

// Writer buffers market data rows and writes them to postgres in batches.
// Handle is registered as a dispatcher subscriber; the flush happens inline
// on the dispatch goroutine, matching the pace the feed actually delivers.
type Writer struct {
	db  *gorm.DB
	cfg Config

	mu           sync.Mutex
	snapshots    []SnapshotRow
	indexes      []IndexRow
	transactions []TransactionRow
	orderDetails []OrderDetailRow
	ngtsTicks    []NGTSTickRow
	pending      int
}

type batch struct {
	snapshots    []SnapshotRow
	indexes      []IndexRow
	transactions []TransactionRow
	orderDetails []OrderDetailRow
	ngtsTicks    []NGTSTickRow
}

// NewWriter builds a buffered writer on the given gorm handle.
func NewWriter(db *gorm.DB, cfg Config) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Writer{db: db, cfg: cfg}
}

// Handle consumes one event from the dispatcher and buffers its row.
func (w *Writer) Handle(e model.Event) {
	w.mu.Lock()
	switch p := e.Payload.(type) {
	case *model.Snapshot:
		w.snapshots = append(w.snapshots, snapshotRow(e, p))
	case *model.Index:
		w.indexes = append(w.indexes, indexRow(e, p))
	case *model.Transaction:
		w.transactions = append(w.transactions, transactionRow(e, p))
	case *model.OrderDetail:
		w.orderDetails = append(w.orderDetails, orderDetailRow(e, p))
	case *model.NGTSTick:
		w.ngtsTicks = append(w.ngtsTicks, ngtsTickRow(e, p))
	default:
		w.mu.Unlock()
		return
	}
	w.pending++
	var full *batch
	if w.pending >= w.cfg.BatchSize {
		full = w.takeLocked()
	}
	w.mu.Unlock()

	if full != nil {
		w.write(full)
	}
}

// Run flushes partial buffers on the interval until the context ends,
// then flushes one last time.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Flush()
			return
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Flush writes whatever is buffered right now.
func (w *Writer) Flush() {
	w.mu.Lock()
	b := w.takeLocked()
	w.mu.Unlock()
	if b != nil {
		w.write(b)
	}
}

// Pending returns the number of buffered rows.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Writer) takeLocked() *batch {
	if w.pending == 0 {
		return nil
	}
	b := &batch{
		snapshots:    w.snapshots,
		indexes:      w.indexes,
		transactions: w.transactions,
		orderDetails: w.orderDetails,
		ngtsTicks:    w.ngtsTicks,
	}
	w.snapshots = nil
	w.indexes = nil
	w.transactions = nil
	w.orderDetails = nil
	w.ngtsTicks = nil
	w.pending = 0
	return b
}

func (w *Writer) write(b *batch) {
	if len(b.snapshots) > 0 {
		if err := w.db.CreateInBatches(b.snapshots, w.cfg.BatchSize).Error; err != nil {
			logs.Errorf("write snapshots: %v", err)
		}
	}
	if len(b.indexes) > 0 {
		if err := w.db.CreateInBatches(b.indexes, w.cfg.BatchSize).Error; err != nil {
			logs.Errorf("write indexes: %v", err)
		}
	}
	if len(b.transactions) > 0 {
		if err := w.db.CreateInBatches(b.transactions, w.cfg.BatchSize).Error; err != nil {
			logs.Errorf("write transactions: %v", err)
		}
	}
	if len(b.orderDetails) > 0 {
		if err := w.db.CreateInBatches(b.orderDetails, w.cfg.BatchSize).Error; err != nil {
			logs.Errorf("write order details: %v", err)
		}
	}
	if len(b.ngtsTicks) > 0 {
		if err := w.db.CreateInBatches(b.ngtsTicks, w.cfg.BatchSize).Error; err != nil {
			logs.Errorf("write ngts ticks: %v", err)
		}
	}
}

func snapshotRow(e model.Event, p *model.Snapshot) SnapshotRow {
	bids, _ := sonic.ConfigFastest.Marshal(p.Bids)
	asks, _ := sonic.ConfigFastest.Marshal(p.Asks)
	return SnapshotRow{
		SecurityID: e.SecurityID,
		Exchange:   e.Exchange.String(),
		Kind:       e.Kind.String(),
		Seq:        e.Seq,
		LastPrice:  string(p.LastPrice),
		Volume:     p.Volume,
		Turnover:   string(p.Turnover),
		Bids:       bids,
		Asks:       asks,
		EventTs:    e.EventTsNano,
		RecvTs:     e.RecvTsNano,
	}
}

func indexRow(e model.Event, p *model.Index) IndexRow {
	return IndexRow{
		SecurityID: e.SecurityID,
		Exchange:   e.Exchange.String(),
		Seq:        e.Seq,
		LastIndex:  string(p.LastIndex),
		PreIndex:   string(p.PreIndex),
		Turnover:   string(p.Turnover),
		EventTs:    e.EventTsNano,
		RecvTs:     e.RecvTsNano,
	}
}

func transactionRow(e model.Event, p *model.Transaction) TransactionRow {
	return TransactionRow{
		SecurityID: e.SecurityID,
		Exchange:   e.Exchange.String(),
		Seq:        e.Seq,
		Price:      string(p.Price),
		Volume:     p.Volume,
		BuyNo:      p.BuyNo,
		SellNo:     p.SellNo,
		TradeType:  p.TradeType,
		EventTs:    e.EventTsNano,
		RecvTs:     e.RecvTsNano,
	}
}

func orderDetailRow(e model.Event, p *model.OrderDetail) OrderDetailRow {
	return OrderDetailRow{
		SecurityID: e.SecurityID,
		Exchange:   e.Exchange.String(),
		Seq:        e.Seq,
		OrderNo:    p.OrderNo,
		Price:      string(p.Price),
		Volume:     p.Volume,
		Side:       p.Side,
		OrderType:  p.OrderType,
		EventTs:    e.EventTsNano,
		RecvTs:     e.RecvTsNano,
	}
}

func ngtsTickRow(e model.Event, p *model.NGTSTick) NGTSTickRow {
	return NGTSTickRow{
		SecurityID: e.SecurityID,
		Exchange:   e.Exchange.String(),
		Seq:        e.Seq,
		TickType:   p.TickType,
		Price:      string(p.Price),
		Volume:     p.Volume,
		BuyNo:      p.BuyNo,
		SellNo:     p.SellNo,
		EventTs:    e.EventTsNano,
		RecvTs:     e.RecvTsNano,
	}
}
