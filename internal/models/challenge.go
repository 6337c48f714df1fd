package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ChallengeStatus is the lifecycle state of a funded-trading challenge.
// "failed" and "passed" are terminal: the only legal transitions are
// active -> failed and active -> passed.
type ChallengeStatus string

const (
	StatusActive ChallengeStatus = "active"
	StatusFailed ChallengeStatus = "failed"
	StatusPassed ChallengeStatus = "passed"
)

// Terminal reports whether the status permits no further transitions.
func (s ChallengeStatus) Terminal() bool {
	return s == StatusFailed || s == StatusPassed
}

// Valid reports whether s is one of the known lifecycle states.
func (s ChallengeStatus) Valid() bool {
	return s == StatusActive || s == StatusFailed || s == StatusPassed
}

// Challenge represents a funded-trading evaluation account with fixed
// starting capital and risk limits.
type Challenge struct {
	gorm.Model
	UserID uint `gorm:"index:ix_challenges_user_id_status;not null" json:"user_id"`

	StartBalance  float64 `gorm:"not null;check:start_balance >= 0" json:"start_balance"`
	CurrentEquity float64 `gorm:"not null;check:current_equity >= 0" json:"current_equity"`

	Status ChallengeStatus `gorm:"index:ix_challenges_user_id_status;not null;default:active" json:"status"`

	// Loss limits are fractions, e.g. 0.05 for 5%.
	DailyLossLimit float64 `gorm:"not null;check:daily_loss_limit >= 0 AND daily_loss_limit <= 1" json:"daily_loss_limit"`
	TotalLossLimit float64 `gorm:"not null;check:total_loss_limit >= 0 AND total_loss_limit <= 1" json:"total_loss_limit"`

	StartDate time.Time `gorm:"not null" json:"start_date"`

	Trades []Trade `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Transition moves the challenge to the next lifecycle state. It is the only
// way status should ever be changed: terminal states reject every further
// transition, so a failed or passed challenge cannot be mutated by
// construction.
func (c *Challenge) Transition(next ChallengeStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown challenge status %q", next)
	}
	if c.Status.Terminal() {
		return fmt.Errorf("challenge %d is already %s and cannot become %s", c.ID, c.Status, next)
	}
	if next == StatusActive {
		return fmt.Errorf("challenge %d cannot transition back to %s", c.ID, next)
	}
	c.Status = next
	return nil
}
