// Package domain contains persistence models for reward settlements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SettlementStatus string

const (
	StatusHeld       SettlementStatus = "held"
	StatusProcessing SettlementStatus = "processing"
	StatusPaid       SettlementStatus = "paid"
)

// rank orders statuses along the payout pipeline. Transitions only ever move
// to the immediately following rank.
func (s SettlementStatus) rank() int {
	switch s {
	case StatusHeld:
		return 0
	case StatusProcessing:
		return 1
	case StatusPaid:
		return 2
	default:
		return -1
	}
}

func (s SettlementStatus) Valid() bool { return s.rank() >= 0 }

// NextOf reports whether s is the single-step successor of prev.
func (s SettlementStatus) NextOf(prev SettlementStatus) bool {
	return s.rank() == prev.rank()+1
}

// Before reports whether s comes earlier in the pipeline than other.
func (s SettlementStatus) Before(other SettlementStatus) bool {
	return s.rank() < other.rank()
}

type PayoutMethod string

const (
	PayoutCash          PayoutMethod = "cash"
	PayoutToken         PayoutMethod = "token"
	PayoutPendingChoice PayoutMethod = "pending_choice"
)

// VoiceSettlement is one closed accrual period for one contribution. The
// unique index on (contribution_id, period_start) keeps periods from
// overlapping: each new period starts exactly where the previous one ended.
type VoiceSettlement struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ContributionID snowflake.ID `gorm:"not null;uniqueIndex:idx_settlement_period,priority:1;index"`

	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_settlement_period,priority:2"`
	PeriodEnd   time.Time `gorm:"not null"`
	PeriodLabel string    `gorm:"type:text;not null"`

	TotalMinutes float64 `gorm:"not null"`
	RewardUnits  float64 `gorm:"not null"`

	// Cash value fixed at settlement time from the price snapshot taken when
	// the batch was created. Later price moves never change it.
	PriceSnapshot float64 `gorm:"not null"`
	AmountUSD     float64 `gorm:"not null"`

	Status       SettlementStatus `gorm:"type:text;not null;index"`
	PayoutMethod PayoutMethod     `gorm:"type:text;not null"`

	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}

// TableName sets the database table name.
func (VoiceSettlement) TableName() string { return "voice_settlements" }
