package model

import "github.com/yanun0323/decimal"

// PriceLevel is one rung of the five-level book carried by snapshots.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// Snapshot is the periodic depth-of-book quote for one security.
type Snapshot struct {
	SecurityID string          `json:"security_id"`
	LastPrice  decimal.Decimal `json:"last_price"`
	Volume     int64           `json:"volume"`
	Turnover   decimal.Decimal `json:"turnover"`
	Bids       [5]PriceLevel   `json:"bids"`
	Asks       [5]PriceLevel   `json:"asks"`
}

// Index is an index quote.
type Index struct {
	SecurityID string          `json:"security_id"`
	LastIndex  decimal.Decimal `json:"last_index"`
	PreIndex   decimal.Decimal `json:"pre_index"`
	Turnover   decimal.Decimal `json:"turnover"`
}

// Transaction is a single executed trade tick.
type Transaction struct {
	SecurityID string          `json:"security_id"`
	Price      decimal.Decimal `json:"price"`
	Volume     int64           `json:"volume"`
	BuyNo      int64           `json:"buy_no"`
	SellNo     int64           `json:"sell_no"`
	TradeType  string          `json:"trade_type"`
}

// NGTSTick is the merged SSE tick stream carrying both order entries and
// trades; TickType tells them apart ("A" add, "D" delete, "T" trade).
type NGTSTick struct {
	SecurityID string          `json:"security_id"`
	TickType   string          `json:"tick_type"`
	Price      decimal.Decimal `json:"price"`
	Volume     int64           `json:"volume"`
	BuyNo      int64           `json:"buy_no"`
	SellNo     int64           `json:"sell_no"`
}

// OrderDetail is a single order entry/cancel tick feeding the book.
type OrderDetail struct {
	SecurityID string          `json:"security_id"`
	OrderNo    int64           `json:"order_no"`
	Price      decimal.Decimal `json:"price"`
	Volume     int64           `json:"volume"`
	Side       string          `json:"side"`
	OrderType  string          `json:"order_type"`
}
