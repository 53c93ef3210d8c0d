// Package domain contains persistence models for the voice usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// VoiceUsageEvent is one immutable ledger entry for one synthesis call that
// used a contributed voice. Exactly one row may exist per event hash
// (first-write-wins); rows are never mutated or deleted, so corrections are
// made by inserting compensating events.
type VoiceUsageEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ContributionID snowflake.ID `gorm:"not null;index:idx_usage_contribution_created,priority:1;index:idx_usage_contribution_caller,priority:1"`
	CharacterID    string       `gorm:"type:text;not null"`
	CallerID       string       `gorm:"type:text;not null;index:idx_usage_contribution_caller,priority:2"`

	DurationSeconds float64 `gorm:"not null"`
	TextLength      int     `gorm:"not null"`

	EventHash string `gorm:"type:text;not null;uniqueIndex"`

	// Reward snapshot taken at write time. Historical cash equivalents are
	// reconstructed from these fields, never from a later price.
	RewardUnits   float64 `gorm:"not null"`
	PriceSnapshot float64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;index:idx_usage_contribution_created,priority:2"`
}

// TableName sets the database table name.
func (VoiceUsageEvent) TableName() string { return "voice_usage_events" }

// VoiceCharacterLink is the materialized aggregate for one
// (contribution, character) pair. Its totals must equal a replay of the
// matching VoiceUsageEvents at all times.
type VoiceCharacterLink struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ContributionID snowflake.ID `gorm:"not null;uniqueIndex:idx_link_pair,priority:1"`
	CharacterID    string       `gorm:"type:text;not null;uniqueIndex:idx_link_pair,priority:2"`

	TotalMinutes float64   `gorm:"not null;default:0"`
	TotalRevenue float64   `gorm:"not null;default:0"`
	UsageCount   int64     `gorm:"not null;default:0"`
	LastUsedAt   time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (VoiceCharacterLink) TableName() string { return "voice_character_links" }

// VoiceCallerMarker records that a caller has used a contribution at least
// once. The unique pair index makes exactly one insert succeed per pair, and
// that insert is what increments the contribution's unique caller counter.
type VoiceCallerMarker struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ContributionID snowflake.ID `gorm:"not null;uniqueIndex:idx_caller_marker,priority:1"`
	CallerID       string       `gorm:"type:text;not null;uniqueIndex:idx_caller_marker,priority:2"`

	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (VoiceCallerMarker) TableName() string { return "voice_caller_markers" }
