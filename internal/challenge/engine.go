package challenge

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradesense-go/internal/models"
)

// profitTargetFactor fixes the pass condition at +10% of the start balance,
// independent of the configured loss limits.
const profitTargetFactor = 1.10

// RuleEngine turns a challenge's current equity and trade ledger into its
// next lifecycle status. It is the single place where status transitions are
// decided.
type RuleEngine struct {
	logger *zap.Logger

	// now is the evaluation clock; overridable in tests to pin the UTC day
	// boundary.
	now func() time.Time
}

// NewRuleEngine creates a new risk rule engine.
func NewRuleEngine(logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		logger: logger,
		now:    time.Now,
	}
}

// utcStartOfDay returns UTC midnight of the calendar day containing ts.
func utcStartOfDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// Evaluate loads the challenge and applies the risk rules against it,
// persisting a status transition when one fires. The returned status is the
// post-evaluation status. An unknown challenge id yields ErrChallengeNotFound
// and no mutation.
//
// Pass the enclosing transaction handle when evaluation is part of a larger
// unit of work so that the status write commits or rolls back with it.
func (e *RuleEngine) Evaluate(db *gorm.DB, challengeID uint) (models.ChallengeStatus, error) {
	var ch models.Challenge
	if err := db.First(&ch, challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("challenge %d: %w", challengeID, ErrChallengeNotFound)
		}
		return "", fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}
	return e.apply(db, &ch)
}

// apply runs the rules against an already-loaded challenge. Rules are checked
// in fixed priority order and the first hit wins:
//
//  1. terminal short-circuit: failed and passed are sticky, never re-derived
//  2. total max loss: equity <= start_balance * (1 - total_loss_limit)
//  3. daily max loss: equity <= day-start balance * (1 - daily_loss_limit),
//     where the day-start balance is reconstructed from the ledger as of UTC
//     midnight of the evaluation day
//  4. profit target: equity >= start_balance * 1.10
//
// Threshold comparisons are inclusive: touching a threshold exactly counts.
// The daily baseline deliberately uses the evaluation-time UTC calendar day,
// not a rolling 24h window or the trader's timezone.
func (e *RuleEngine) apply(db *gorm.DB, ch *models.Challenge) (models.ChallengeStatus, error) {
	if ch.Status.Terminal() {
		return ch.Status, nil
	}

	totalThreshold := ch.StartBalance * (1 - ch.TotalLossLimit)
	if ch.CurrentEquity <= totalThreshold {
		e.logger.Info("Total max loss breached",
			zap.Uint("challenge_id", ch.ID),
			zap.Float64("current_equity", ch.CurrentEquity),
			zap.Float64("threshold", totalThreshold))
		return e.transition(db, ch, models.StatusFailed)
	}

	dayStart := utcStartOfDay(e.now())
	pnlBeforeToday, err := NewLedger(db).SumRealizedPnl(ch.ID, dayStart)
	if err != nil {
		return "", err
	}
	dayStartBalance := ch.StartBalance + pnlBeforeToday

	dailyThreshold := dayStartBalance * (1 - ch.DailyLossLimit)
	if ch.CurrentEquity <= dailyThreshold {
		e.logger.Info("Daily max loss breached",
			zap.Uint("challenge_id", ch.ID),
			zap.Float64("current_equity", ch.CurrentEquity),
			zap.Float64("day_start_balance", dayStartBalance),
			zap.Float64("threshold", dailyThreshold))
		return e.transition(db, ch, models.StatusFailed)
	}

	if ch.CurrentEquity >= ch.StartBalance*profitTargetFactor {
		e.logger.Info("Profit target reached",
			zap.Uint("challenge_id", ch.ID),
			zap.Float64("current_equity", ch.CurrentEquity))
		return e.transition(db, ch, models.StatusPassed)
	}

	return ch.Status, nil
}

// transition applies the status change through the model's transition guard
// and persists it immediately.
func (e *RuleEngine) transition(db *gorm.DB, ch *models.Challenge, next models.ChallengeStatus) (models.ChallengeStatus, error) {
	if err := ch.Transition(next); err != nil {
		return "", err
	}
	if err := db.Model(ch).Update("status", ch.Status).Error; err != nil {
		return "", fmt.Errorf("failed to persist status for challenge %d: %w", ch.ID, err)
	}
	return ch.Status, nil
}
