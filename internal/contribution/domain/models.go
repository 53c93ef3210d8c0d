// Package domain contains persistence models for contributed voices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ContributionStatus string

const (
	StatusPendingReview ContributionStatus = "pending_review"
	StatusApproved      ContributionStatus = "approved"
	StatusRejected      ContributionStatus = "rejected"
	StatusPaused        ContributionStatus = "paused"
)

// VoiceContribution is one contributor-submitted voice sample. Rows are never
// deleted, only status-transitioned; a paused contribution stops accruing new
// usage but keeps its history and counters.
type VoiceContribution struct {
	ID            snowflake.ID       `gorm:"primaryKey"`
	ContributorID string             `gorm:"type:text;not null;index"`
	Status        ContributionStatus `gorm:"type:text;not null;index"`

	AudioFilePath        string  `gorm:"type:text;not null"`
	AudioDurationSeconds float64 `gorm:"not null"`
	AudioFormat          string  `gorm:"type:text;not null"`
	SampleRate           int     `gorm:"not null"`

	QualityScore int `gorm:"not null"`
	NoiseScore   int `gorm:"not null"`

	DisplayName           string            `gorm:"type:text;not null"`
	Description           string            `gorm:"type:text"`
	Traits                datatypes.JSONMap `gorm:"type:jsonb"` // gender/age/accent tags
	AllowEnterpriseResale bool              `gorm:"not null;default:false"`
	ConsentAt             time.Time         `gorm:"not null"`

	// Materialized counters maintained by the usage ledger and settlement
	// batcher. Must always equal a replay of the underlying events.
	TotalMinutesUsed     float64 `gorm:"not null;default:0"`
	UniqueUsersServed    int64   `gorm:"not null;default:0"`
	ActiveCharacterCount int64   `gorm:"not null;default:0"`
	LifetimeEarningsUSD  float64 `gorm:"not null;default:0"`

	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	ApprovedAt *time.Time
}

// TableName sets the database table name.
func (VoiceContribution) TableName() string { return "voice_contributions" }

// Accruing reports whether new usage may earn rewards for this contribution.
func (c *VoiceContribution) Accruing() bool {
	return c.Status == StatusApproved
}
