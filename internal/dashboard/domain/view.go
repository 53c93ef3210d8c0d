// Package domain defines the contributor dashboard read model.
package domain

import (
	"context"
	"errors"
	"time"

	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
)

// ContributionSummary is the header block of the dashboard.
type ContributionSummary struct {
	ID                   string     `json:"id"`
	DisplayName          string     `json:"display_name"`
	Status               string     `json:"status"`
	TotalMinutesUsed     float64    `json:"total_minutes_used"`
	UniqueUsersServed    int64      `json:"unique_users_served"`
	ActiveCharacterCount int64      `json:"active_character_count"`
	LifetimeEarningsUSD  float64    `json:"lifetime_earnings_usd"`
	CreatedAt            time.Time  `json:"created_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
}

// CharacterUsage is one row of the per-character usage table.
type CharacterUsage struct {
	CharacterID  string    `json:"character_id"`
	TotalMinutes float64   `json:"total_minutes"`
	TotalRevenue float64   `json:"total_revenue"`
	UsageCount   int64     `json:"usage_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// SettlementSummary is one row of the settlement history table.
type SettlementSummary struct {
	ID           string     `json:"id"`
	PeriodLabel  string     `json:"period_label"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	TotalMinutes float64    `json:"total_minutes"`
	RewardUnits  float64    `json:"reward_units"`
	AmountUSD    float64    `json:"amount_usd"`
	Status       string     `json:"status"`
	PayoutMethod string     `json:"payout_method"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Growth shows recent usage windows.
type Growth struct {
	Last24h usagedomain.WindowStats `json:"last_24h"`
	Last7d  usagedomain.WindowStats `json:"last_7d"`
}

// AccruedEstimate values the not-yet-settled units at the current price.
// Units are always exact; the cash figure is an estimate and is omitted when
// no price is available.
type AccruedEstimate struct {
	Units          float64 `json:"units"`
	CashUSD        float64 `json:"cash_usd"`
	CurrentPrice   float64 `json:"current_price"`
	PriceAvailable bool    `json:"price_available"`
}

type View struct {
	Contribution         ContributionSummary `json:"contribution"`
	Characters           []CharacterUsage    `json:"characters"`
	Settlements          []SettlementSummary `json:"settlements"`
	Growth               Growth              `json:"growth"`
	Accrued              AccruedEstimate     `json:"accrued"`
	NextSettlementInDays int                 `json:"next_settlement_in_days"`
}

type Service interface {
	// View assembles the dashboard for one contribution. Only the contributor
	// who owns it may read it.
	View(ctx context.Context, contributionID, callerID string) (*View, error)
}

var (
	ErrInvalidID = errors.New("invalid_contribution_id")
	ErrNotFound  = errors.New("contribution_not_found")
	ErrForbidden = errors.New("not_contribution_owner")
)
