package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeSide is the direction of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade represents a completed trade record attached to a challenge. Rows are
// append-only: the realized profit/loss is computed once when the trade is
// created and never changes afterwards.
type Trade struct {
	gorm.Model
	ChallengeID uint `gorm:"index:ix_trades_challenge_id_timestamp;not null" json:"challenge_id"`

	Symbol string    `gorm:"size:32;index;not null" json:"symbol"`
	Side   TradeSide `gorm:"column:type;not null" json:"type"`

	Quantity  int     `gorm:"not null;check:quantity > 0" json:"quantity"`
	OpenPrice float64 `gorm:"not null;check:open_price >= 0" json:"open_price"`
	// ClosePrice and ProfitLoss are nullable for trades that are still open;
	// the execution flow always realizes both at creation time.
	ClosePrice *float64 `gorm:"check:close_price IS NULL OR close_price >= 0" json:"close_price"`
	ProfitLoss *float64 `json:"profit_loss"`

	Timestamp time.Time `gorm:"index:ix_trades_challenge_id_timestamp;not null" json:"timestamp"`
}
