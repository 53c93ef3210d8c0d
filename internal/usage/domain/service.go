package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RecordRequest describes one successful synthesis call that used a
// contributed voice. RequestID is the synthesis pipeline's request identifier;
// it is stable across retries of the same call, which makes the derived event
// hash a true idempotency key.
type RecordRequest struct {
	ContributionID  string  `json:"contribution_id"`
	CharacterID     string  `json:"character_id"`
	CallerID        string  `json:"caller_id"`
	RequestID       string  `json:"request_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	TextLength      int     `json:"text_length"`
}

// WindowStats summarizes ledger activity inside a time window.
type WindowStats struct {
	Minutes float64 `json:"minutes"`
	Events  int64   `json:"events"`
}

type Service interface {
	// Record appends a usage event and updates the derived aggregates in the
	// same transaction. A duplicate event hash is a silent no-op.
	Record(ctx context.Context, req RecordRequest) error

	// WindowStats sums usage for a contribution since the given time using an
	// indexed range query.
	WindowStats(ctx context.Context, contributionID snowflake.ID, since time.Time) (WindowStats, error)
}

var (
	ErrInvalidContribution  = errors.New("invalid_contribution")
	ErrInvalidCharacter     = errors.New("invalid_character")
	ErrInvalidCaller        = errors.New("invalid_caller")
	ErrInvalidRequestID     = errors.New("invalid_request_id")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrContributionNotFound = errors.New("contribution_not_found")
	ErrNotAccruing          = errors.New("contribution_not_accruing")
)
