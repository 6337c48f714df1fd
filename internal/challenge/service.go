package challenge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesense-go/internal/config"
	"tradesense-go/internal/models"
)

// TradeRequest is the input for executing a trade against a challenge.
type TradeRequest struct {
	ChallengeID uint
	Symbol      string
	Side        string
	Quantity    int
	OpenPrice   float64
	ClosePrice  float64
}

// TradeResult is what a successful execution returns: the persisted trade and
// the challenge with its post-evaluation equity and status.
type TradeResult struct {
	Trade     models.Trade
	Challenge models.Challenge
}

// Service orchestrates trade execution and challenge lifecycle management on
// top of an explicitly injected database handle.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	engine *RuleEngine
	cfg    config.Challenge
}

// NewService creates a new challenge service.
func NewService(logger *zap.Logger, db *gorm.DB, engine *RuleEngine, cfg config.Challenge) *Service {
	return &Service{
		logger: logger,
		db:     db,
		engine: engine,
		cfg:    cfg,
	}
}

// validate normalizes the request in place and rejects malformed input before
// anything touches the database.
func (r *TradeRequest) validate() error {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	r.Side = strings.ToLower(strings.TrimSpace(r.Side))
	if r.Side != string(models.SideBuy) && r.Side != string(models.SideSell) {
		return &ValidationError{Field: "type", Reason: "must be 'buy' or 'sell'"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if r.OpenPrice < 0 || r.ClosePrice < 0 {
		return &ValidationError{Field: "price", Reason: "prices must be >= 0"}
	}
	return nil
}

// realizedPnl computes the profit/loss locked in by the trade.
func realizedPnl(side models.TradeSide, quantity int, openPrice, closePrice float64) float64 {
	if side == models.SideBuy {
		return (closePrice - openPrice) * float64(quantity)
	}
	return (openPrice - closePrice) * float64(quantity)
}

// ExecuteTrade validates the request, records the trade with its realized
// PNL, updates the challenge equity, and runs the risk rules. The three
// writes commit as one transaction: a reader never observes a trade without
// its equity and status consequences, and any storage failure rolls the whole
// unit back. Concurrent trades on the same challenge serialize on the row
// lock taken here.
func (s *Service) ExecuteTrade(req TradeRequest) (*TradeResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var result TradeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ch models.Challenge
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ch, req.ChallengeID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("challenge %d: %w", req.ChallengeID, ErrChallengeNotFound)
			}
			return fmt.Errorf("failed to load challenge %d: %w", req.ChallengeID, err)
		}

		side := models.TradeSide(req.Side)
		pnl := realizedPnl(side, req.Quantity, req.OpenPrice, req.ClosePrice)

		closePrice := req.ClosePrice
		profitLoss := pnl
		trade := models.Trade{
			ChallengeID: ch.ID,
			Symbol:      req.Symbol,
			Side:        side,
			Quantity:    req.Quantity,
			OpenPrice:   req.OpenPrice,
			ClosePrice:  &closePrice,
			ProfitLoss:  &profitLoss,
			Timestamp:   time.Now().UTC(),
		}
		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}

		// Equity update happens exactly once per trade, before evaluation,
		// so the rule engine observes post-trade equity.
		ch.CurrentEquity += pnl
		if err := tx.Model(&ch).Update("current_equity", ch.CurrentEquity).Error; err != nil {
			return fmt.Errorf("failed to update equity for challenge %d: %w", ch.ID, err)
		}

		if _, err := s.engine.apply(tx, &ch); err != nil {
			return err
		}

		result = TradeResult{Trade: trade, Challenge: ch}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trade executed",
		zap.Uint("challenge_id", result.Challenge.ID),
		zap.Uint("trade_id", result.Trade.ID),
		zap.String("symbol", result.Trade.Symbol),
		zap.Float64("profit_loss", *result.Trade.ProfitLoss),
		zap.Float64("current_equity", result.Challenge.CurrentEquity),
		zap.String("status", string(result.Challenge.Status)))

	return &result, nil
}

// Evaluate re-runs the risk rules for a challenge outside of trade execution.
func (s *Service) Evaluate(challengeID uint) (models.ChallengeStatus, error) {
	return s.engine.Evaluate(s.db, challengeID)
}

// BuyChallenge creates a fresh challenge for the user from a purchase plan.
// Unknown plans fall back to the configured default plan.
func (s *Service) BuyChallenge(userID uint, planType string) (*models.Challenge, error) {
	plan := strings.ToLower(strings.TrimSpace(planType))
	balance, ok := s.cfg.Plans[plan]
	if !ok {
		plan = s.cfg.DefaultPlan
		balance, ok = s.cfg.Plans[plan]
		if !ok {
			return nil, fmt.Errorf("no balance configured for default plan %q", plan)
		}
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	ch := models.Challenge{
		UserID:         user.ID,
		StartBalance:   balance,
		CurrentEquity:  balance,
		Status:         models.StatusActive,
		DailyLossLimit: s.cfg.DailyLossLimit,
		TotalLossLimit: s.cfg.TotalLossLimit,
		StartDate:      time.Now().UTC(),
	}
	if err := s.db.Create(&ch).Error; err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.logger.Info("Challenge created",
		zap.Uint("user_id", user.ID),
		zap.Uint("challenge_id", ch.ID),
		zap.String("plan", plan),
		zap.Float64("start_balance", balance))

	return &ch, nil
}
