package challenge

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"tradesense-go/internal/models"
)

// Ledger provides read-only aggregate queries over the persisted trades of a
// challenge. Construct it with the handle the surrounding operation runs on
// so that queries inside a transaction see that transaction's snapshot.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger bound to the given database handle.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// SumRealizedPnl returns the sum of realized profit/loss over the challenge's
// trades executed strictly before the given time. Trades whose profit/loss
// has not been realized yet are excluded. Returns 0 when no trades match.
func (l *Ledger) SumRealizedPnl(challengeID uint, before time.Time) (float64, error) {
	var total float64
	err := l.db.Model(&models.Trade{}).
		Where("challenge_id = ? AND timestamp < ? AND profit_loss IS NOT NULL", challengeID, before).
		Select("COALESCE(SUM(profit_loss), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum realized pnl for challenge %d: %w", challengeID, err)
	}
	return total, nil
}
