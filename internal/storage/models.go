package storage

import "time"

// Prices are persisted as text: the feed carries exact decimal strings and
// the sink must not round them through a float column.

// SnapshotRow persists one depth-of-book snapshot (regular or XTS).
type SnapshotRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SecurityID string `gorm:"size:16;index:idx_snapshot_sec_ts,priority:1"`
	Exchange   string `gorm:"size:8"`
	Kind       string `gorm:"size:16"`
	Seq        int64
	LastPrice  string `gorm:"type:text"`
	Volume     int64
	Turnover   string `gorm:"type:text"`
	Bids       []byte `gorm:"type:jsonb"`
	Asks       []byte `gorm:"type:jsonb"`
	EventTs    int64  `gorm:"index:idx_snapshot_sec_ts,priority:2"`
	RecvTs     int64
	CreatedAt  time.Time
}

func (SnapshotRow) TableName() string { return "lev2_snapshots" }

// IndexRow persists one index quote.
type IndexRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SecurityID string `gorm:"size:16;index"`
	Exchange   string `gorm:"size:8"`
	Seq        int64
	LastIndex  string `gorm:"type:text"`
	PreIndex   string `gorm:"type:text"`
	Turnover   string `gorm:"type:text"`
	EventTs    int64
	RecvTs     int64
	CreatedAt  time.Time
}

func (IndexRow) TableName() string { return "lev2_indexes" }

// TransactionRow persists one executed trade tick.
type TransactionRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SecurityID string `gorm:"size:16;index:idx_txn_sec_ts,priority:1"`
	Exchange   string `gorm:"size:8"`
	Seq        int64
	Price      string `gorm:"type:text"`
	Volume     int64
	BuyNo      int64
	SellNo     int64
	TradeType  string `gorm:"size:4"`
	EventTs    int64  `gorm:"index:idx_txn_sec_ts,priority:2"`
	RecvTs     int64
	CreatedAt  time.Time
}

func (TransactionRow) TableName() string { return "lev2_transactions" }

// OrderDetailRow persists one order entry/cancel tick.
type OrderDetailRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SecurityID string `gorm:"size:16;index"`
	Exchange   string `gorm:"size:8"`
	Seq        int64
	OrderNo    int64
	Price      string `gorm:"type:text"`
	Volume     int64
	Side       string `gorm:"size:4"`
	OrderType  string `gorm:"size:4"`
	EventTs    int64
	RecvTs     int64
	CreatedAt  time.Time
}

func (OrderDetailRow) TableName() string { return "lev2_order_details" }

// NGTSTickRow persists one merged SSE tick.
type NGTSTickRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SecurityID string `gorm:"size:16;index"`
	Exchange   string `gorm:"size:8"`
	Seq        int64
	TickType   string `gorm:"size:4"`
	Price      string `gorm:"type:text"`
	Volume     int64
	BuyNo      int64
	SellNo     int64
	EventTs    int64
	RecvTs     int64
	CreatedAt  time.Time
}

func (NGTSTickRow) TableName() string { return "lev2_ngts_ticks" }
