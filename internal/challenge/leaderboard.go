package challenge

import (
	"fmt"

	"tradesense-go/internal/models"
)

// LeaderboardEntry is one row of the trader ranking.
type LeaderboardEntry struct {
	UserID       uint    `json:"user_id"`
	Username     string  `json:"username"`
	ChallengeID  uint    `json:"challenge_id"`
	StartBalance float64 `json:"start_balance"`
	TotalPnl     float64 `json:"total_pnl"`
	ProfitPct    float64 `json:"profit_pct"`
}

// Leaderboard returns the top challenges ranked by percentage profit,
// profit_pct = sum(profit_loss) / start_balance * 100. Challenges with no
// trades rank with zero profit via the left join; a zero start balance ranks
// with zero profit instead of dividing by zero.
func (s *Service) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	entries := make([]LeaderboardEntry, 0, limit)
	err := s.db.Model(&models.Challenge{}).
		Select("users.id AS user_id, " +
			"users.username AS username, " +
			"challenges.id AS challenge_id, " +
			"challenges.start_balance AS start_balance, " +
			"COALESCE(SUM(trades.profit_loss), 0) AS total_pnl, " +
			"COALESCE(COALESCE(SUM(trades.profit_loss), 0) / NULLIF(challenges.start_balance, 0) * 100, 0) AS profit_pct").
		Joins("JOIN users ON users.id = challenges.user_id").
		Joins("LEFT JOIN trades ON trades.challenge_id = challenges.id").
		Group("users.id, users.username, challenges.id, challenges.start_balance").
		Order("profit_pct DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}
	return entries, nil
}
