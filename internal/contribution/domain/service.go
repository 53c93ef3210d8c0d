package domain

import (
	"context"
	"errors"
)

// SampleAudio carries the uploaded voice sample plus the metadata extracted
// from it by the upload pipeline.
type SampleAudio struct {
	Filename        string
	MIMEType        string
	SizeBytes       int64
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Data            []byte
}

type SubmitRequest struct {
	ContributorID         string
	DisplayName           string
	Description           string
	Gender                string
	Age                   string
	Accent                string
	Consent               bool
	AllowEnterpriseResale bool
	Audio                 *SampleAudio
}

// AdmissionResult is the synchronous answer to a contribution submission.
type AdmissionResult struct {
	Contribution *VoiceContribution
	QualityScore int
	NoiseScore   int
	Warnings     []string
	AutoApproved bool
}

type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*AdmissionResult, error)
	Review(ctx context.Context, id string, decision ReviewDecision) (*VoiceContribution, error)
	Pause(ctx context.Context, id string, contributorID string) (*VoiceContribution, error)
	Resume(ctx context.Context, id string, contributorID string) (*VoiceContribution, error)
	GetByID(ctx context.Context, id string) (*VoiceContribution, error)
}

var (
	ErrConsentRequired    = errors.New("consent_required")
	ErrMissingAudio       = errors.New("missing_audio")
	ErrInvalidContributor = errors.New("invalid_contributor")
	ErrNotFound           = errors.New("contribution_not_found")
	ErrInvalidID          = errors.New("invalid_contribution_id")
	ErrInvalidDecision    = errors.New("invalid_review_decision")
	ErrInvalidTransition  = errors.New("invalid_status_transition")
	ErrNotOwner           = errors.New("not_contribution_owner")
)
