package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RunResult reports the outcome of one settlement attempt for one
// contribution. Settlement is nil when the accrued period fell below the
// minimum and no batch was created.
type RunResult struct {
	Settlement *VoiceSettlement
	Skipped    bool
	SkipReason string
}

// TransitionRequest advances one settlement a single step along
// held -> processing -> paid. A PayoutMethod may be chosen at the processing
// step; paid settlements are immutable.
type TransitionRequest struct {
	ID           string           `json:"-"`
	Status       SettlementStatus `json:"status"`
	PayoutMethod PayoutMethod     `json:"payout_method,omitempty"`
}

type Service interface {
	// RunSettlement closes the accrual period ending at now for one
	// contribution and creates a held settlement batch for it.
	RunSettlement(ctx context.Context, contributionID snowflake.ID, now time.Time) (RunResult, error)

	// Transition moves a settlement one step forward. Re-submitting the
	// current status is a no-op; moving backwards or skipping a step fails.
	Transition(ctx context.Context, req TransitionRequest) (*VoiceSettlement, error)

	// ListByContribution returns the most recent settlements for a
	// contribution, newest period first.
	ListByContribution(ctx context.Context, contributionID snowflake.ID, limit int) ([]VoiceSettlement, error)
}

var (
	ErrNotFound             = errors.New("settlement_not_found")
	ErrContributionNotFound = errors.New("contribution_not_found")
	ErrInvalidID            = errors.New("invalid_settlement_id")
	ErrInvalidStatus        = errors.New("invalid_settlement_status")
	ErrInvalidPayout        = errors.New("invalid_payout_method")
	ErrStatusRegression     = errors.New("settlement_status_regression")
	ErrInvalidTransition    = errors.New("invalid_settlement_transition")
	ErrOverlappingPeriod    = errors.New("overlapping_settlement_period")
)
