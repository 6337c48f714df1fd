package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesense-go/internal/models"
)

// createChallengeTrade builds a still-open trade: no close price and no
// realized pnl yet.
func createChallengeTrade(challengeID uint, ts time.Time) *models.Trade {
	return &models.Trade{
		ChallengeID: challengeID,
		Symbol:      "AAPL",
		Side:        models.SideBuy,
		Quantity:    1,
		OpenPrice:   100,
		Timestamp:   ts,
	}
}

func TestSumRealizedPnl_NoTradesReturnsZero(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db)

	total, err := ledger.SumRealizedPnl(1, evalNow)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestSumRealizedPnl_StrictlyBeforeCutoff(t *testing.T) {
	db := setupTestDB(t)
	ch := createChallenge(t, db, 10000, 0.05, 0.10)

	cutoff := evalNow
	createRealizedTrade(t, db, ch.ID, 100, cutoff.Add(-time.Hour)) // counted
	createRealizedTrade(t, db, ch.ID, 200, cutoff)                 // at cutoff, excluded
	createRealizedTrade(t, db, ch.ID, 400, cutoff.Add(time.Hour))  // after, excluded

	total, err := NewLedger(db).SumRealizedPnl(ch.ID, cutoff)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, total)
}

func TestSumRealizedPnl_IgnoresUnrealizedTrades(t *testing.T) {
	db := setupTestDB(t)
	ch := createChallenge(t, db, 10000, 0.05, 0.10)

	createRealizedTrade(t, db, ch.ID, 250, evalNow.Add(-2*time.Hour))

	// Open trade: no close price, no realized pnl.
	open := createChallengeTrade(ch.ID, evalNow.Add(-time.Hour))
	require.NoError(t, db.Create(open).Error)

	total, err := NewLedger(db).SumRealizedPnl(ch.ID, evalNow)
	assert.NoError(t, err)
	assert.Equal(t, 250.0, total)
}

func TestSumRealizedPnl_ScopedToChallenge(t *testing.T) {
	db := setupTestDB(t)
	first := createChallenge(t, db, 10000, 0.05, 0.10)
	second := createChallenge(t, db, 10000, 0.05, 0.10)

	createRealizedTrade(t, db, first.ID, 100, evalNow.Add(-time.Hour))
	createRealizedTrade(t, db, second.ID, 900, evalNow.Add(-time.Hour))

	total, err := NewLedger(db).SumRealizedPnl(first.ID, evalNow)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, total)
}
