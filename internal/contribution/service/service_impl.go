package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/contribution/blob"
	"github.com/agentwood/voiceledger/internal/contribution/domain"
	"github.com/agentwood/voiceledger/internal/contribution/noise"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Blobs    blob.Store
	Analyzer noise.Analyzer
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	blobs    blob.Store
	analyzer noise.Analyzer
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("contribution.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		blobs:    p.Blobs,
		analyzer: p.Analyzer,
	}
}

// Submit admits a new voice contribution. Missing consent or audio rejects
// synchronously with no row created; everything else produces a contribution
// in either approved or pending_review status.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.AdmissionResult, error) {
	contributorID := strings.TrimSpace(req.ContributorID)
	if contributorID == "" {
		return nil, domain.ErrInvalidContributor
	}
	if !req.Consent {
		return nil, domain.ErrConsentRequired
	}
	if req.Audio == nil || len(req.Audio.Data) == 0 {
		return nil, domain.ErrMissingAudio
	}

	validation := validateSample(req.Audio)

	path, err := s.storeSample(ctx, contributorID, req.Audio)
	if err != nil {
		return nil, fmt.Errorf("store sample: %w", err)
	}

	noiseScore, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		// The analyzer is an external dependency; on failure the sample
		// routes to manual review instead of being auto-approved.
		s.log.Warn("noise analysis failed, forcing manual review",
			zap.String("contributor_id", contributorID),
			zap.Error(err),
		)
		noiseScore = 100
	}

	now := s.clock.Now()
	autoApproved := len(validation.Errors) == 0 && shouldAutoApprove(validation.QualityScore, noiseScore)

	status := domain.StatusPendingReview
	var approvedAt *time.Time
	if autoApproved {
		status = domain.StatusApproved
		approvedAt = &now
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = fmt.Sprintf("Voice by %s", shortID(contributorID))
	}

	record := &domain.VoiceContribution{
		ID:                    s.genID.Generate(),
		ContributorID:         contributorID,
		Status:                status,
		AudioFilePath:         path,
		AudioDurationSeconds:  req.Audio.DurationSeconds,
		AudioFormat:           formatFromMIME(req.Audio.MIMEType, req.Audio.Filename),
		SampleRate:            req.Audio.SampleRate,
		QualityScore:          validation.QualityScore,
		NoiseScore:            noiseScore,
		DisplayName:           displayName,
		Description:           strings.TrimSpace(req.Description),
		Traits:                traits(req),
		AllowEnterpriseResale: req.AllowEnterpriseResale,
		ConsentAt:             now,
		CreatedAt:             now,
		UpdatedAt:             now,
		ApprovedAt:            approvedAt,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	s.log.Info("contribution submitted",
		zap.String("contribution_id", record.ID.String()),
		zap.String("status", string(status)),
		zap.Int("quality_score", validation.QualityScore),
		zap.Int("noise_score", noiseScore),
	)

	return &domain.AdmissionResult{
		Contribution: record,
		QualityScore: validation.QualityScore,
		NoiseScore:   noiseScore,
		Warnings:     validation.Warnings,
		AutoApproved: autoApproved,
	}, nil
}

func (s *Service) Review(ctx context.Context, id string, decision domain.ReviewDecision) (*domain.VoiceContribution, error) {
	var target domain.ContributionStatus
	switch decision {
	case domain.ReviewApprove:
		target = domain.StatusApproved
	case domain.ReviewReject:
		target = domain.StatusRejected
	default:
		return nil, domain.ErrInvalidDecision
	}
	return s.transition(ctx, id, "", domain.StatusPendingReview, target)
}

func (s *Service) Pause(ctx context.Context, id string, contributorID string) (*domain.VoiceContribution, error) {
	return s.transition(ctx, id, contributorID, domain.StatusApproved, domain.StatusPaused)
}

func (s *Service) Resume(ctx context.Context, id string, contributorID string) (*domain.VoiceContribution, error) {
	return s.transition(ctx, id, contributorID, domain.StatusPaused, domain.StatusApproved)
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.VoiceContribution, error) {
	contributionID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || contributionID == 0 {
		return nil, domain.ErrInvalidID
	}
	var record domain.VoiceContribution
	if err := s.db.WithContext(ctx).First(&record, "id = ?", contributionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	contributorID string,
	from domain.ContributionStatus,
	to domain.ContributionStatus,
) (*domain.VoiceContribution, error) {

	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contributorID != "" && record.ContributorID != contributorID {
		return nil, domain.ErrNotOwner
	}
	if record.Status != from {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if to == domain.StatusApproved && record.ApprovedAt == nil {
		updates["approved_at"] = now
	}

	// Guard on the previous status so concurrent transitions cannot race.
	result := s.db.WithContext(ctx).
		Model(&domain.VoiceContribution{}).
		Where("id = ? AND status = ?", record.ID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrInvalidTransition
	}

	s.log.Info("contribution status changed",
		zap.String("contribution_id", record.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return s.GetByID(ctx, id)
}

func (s *Service) storeSample(ctx context.Context, contributorID string, audio *domain.SampleAudio) (string, error) {
	sum := sha256.Sum256(audio.Data)
	key := fmt.Sprintf("contributions/%s/%s.%s",
		contributorID,
		hex.EncodeToString(sum[:])[:16],
		formatFromMIME(audio.MIMEType, audio.Filename),
	)
	return s.blobs.Put(ctx, key, audio.Data)
}

func traits(req domain.SubmitRequest) datatypes.JSONMap {
	m := datatypes.JSONMap{}
	if v := strings.TrimSpace(req.Gender); v != "" {
		m["gender"] = v
	}
	if v := strings.TrimSpace(req.Age); v != "" {
		m["age"] = v
	}
	if v := strings.TrimSpace(req.Accent); v != "" {
		m["accent"] = v
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
