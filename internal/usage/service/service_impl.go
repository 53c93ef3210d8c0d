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
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	"github.com/agentwood/voiceledger/internal/metrics"
	"github.com/agentwood/voiceledger/internal/priceoracle"
	"github.com/agentwood/voiceledger/internal/reward"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Oracle  priceoracle.Oracle
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	oracle  priceoracle.Oracle
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		oracle:  p.Oracle,
		metrics: p.Metrics,
	}
}

// Record appends one ledger entry and maintains the contribution and
// character-link aggregates in a single transaction. Under concurrent calls
// sharing an event hash, exactly one event and one aggregate increment
// survive; duplicates are absorbed without error.
func (s *Service) Record(ctx context.Context, req usagedomain.RecordRequest) error {
	if err := validateRecordRequest(req); err != nil {
		s.countDrop("invalid_request")
		return err
	}

	contributionID, err := snowflake.ParseString(strings.TrimSpace(req.ContributionID))
	if err != nil || contributionID == 0 {
		s.countDrop("invalid_request")
		return usagedomain.ErrInvalidContribution
	}

	contribution, err := s.loadContribution(ctx, contributionID)
	if err != nil {
		return err
	}
	if contribution == nil {
		s.countDrop("contribution_not_found")
		return usagedomain.ErrContributionNotFound
	}
	// Only approved contributions earn. Paused and pending contributions can
	// still be synthesized against, but their usage is not metered.
	if !contribution.Accruing() {
		s.countDrop("not_accruing")
		return usagedomain.ErrNotAccruing
	}

	price, err := s.oracle.CurrentPrice(ctx)
	if err != nil {
		// Deferred rather than recorded at a guessed price: the synthesis
		// pipeline retries with the same request ID, so the event is not lost.
		s.countDrop("price_unavailable")
		return fmt.Errorf("record usage for %s: %w", contributionID, err)
	}

	accrual := reward.ForEvent(req.DurationSeconds, price)
	now := s.clock.Now()

	event := &usagedomain.VoiceUsageEvent{
		ID:              s.genID.Generate(),
		ContributionID:  contributionID,
		CharacterID:     strings.TrimSpace(req.CharacterID),
		CallerID:        strings.TrimSpace(req.CallerID),
		DurationSeconds: req.DurationSeconds,
		TextLength:      req.TextLength,
		EventHash:       eventHash(contributionID, req),
		RewardUnits:     accrual.Units,
		PriceSnapshot:   price,
		CreatedAt:       now,
	}

	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_hash"}},
			DoNothing: true,
		}).Create(event)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// First write won; nothing more to apply.
			return nil
		}
		inserted = true
		return s.applyAggregates(ctx, tx, event, accrual, now)
	})
	if err != nil {
		return err
	}

	if inserted {
		if s.metrics != nil {
			s.metrics.UsageEventsRecorded.Inc()
		}
		s.log.Debug("usage event recorded",
			zap.String("contribution_id", contributionID.String()),
			zap.String("character_id", event.CharacterID),
			zap.Float64("duration_seconds", req.DurationSeconds),
			zap.Float64("reward_units", accrual.Units),
		)
	} else if s.metrics != nil {
		s.metrics.UsageEventsDeduplicated.Inc()
	}
	return nil
}

func (s *Service) applyAggregates(
	ctx context.Context,
	tx *gorm.DB,
	event *usagedomain.VoiceUsageEvent,
	accrual reward.Accrual,
	now time.Time,
) error {

	minutes := event.DurationSeconds / 60

	// Insert-ignore on the (contribution, caller) pair. Counting the caller's
	// events instead would double-count under READ COMMITTED when two first
	// events for the same caller race; the unique index lets exactly one
	// transaction win the marker and the increment.
	markerResult := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contribution_id"}, {Name: "caller_id"}},
		DoNothing: true,
	}).Create(&usagedomain.VoiceCallerMarker{
		ID:             s.genID.Generate(),
		ContributionID: event.ContributionID,
		CallerID:       event.CallerID,
		CreatedAt:      now,
	})
	if markerResult.Error != nil {
		return markerResult.Error
	}
	newCaller := 0
	if markerResult.RowsAffected > 0 {
		newCaller = 1
	}

	linkResult := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contribution_id"}, {Name: "character_id"}},
		DoNothing: true,
	}).Create(&usagedomain.VoiceCharacterLink{
		ID:             s.genID.Generate(),
		ContributionID: event.ContributionID,
		CharacterID:    event.CharacterID,
		TotalMinutes:   minutes,
		TotalRevenue:   accrual.CashUSD,
		UsageCount:     1,
		LastUsedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if linkResult.Error != nil {
		return linkResult.Error
	}
	newLink := 0
	if linkResult.RowsAffected > 0 {
		newLink = 1
	} else {
		if err := tx.WithContext(ctx).Exec(
			`UPDATE voice_character_links
			 SET total_minutes = total_minutes + ?,
			     total_revenue = total_revenue + ?,
			     usage_count = usage_count + 1,
			     last_used_at = ?,
			     updated_at = ?
			 WHERE contribution_id = ? AND character_id = ?`,
			minutes,
			accrual.CashUSD,
			now,
			now,
			event.ContributionID,
			event.CharacterID,
		).Error; err != nil {
			return err
		}
	}

	return tx.WithContext(ctx).Exec(
		`UPDATE voice_contributions
		 SET total_minutes_used = total_minutes_used + ?,
		     unique_users_served = unique_users_served + ?,
		     active_character_count = active_character_count + ?,
		     updated_at = ?
		 WHERE id = ?`,
		minutes,
		newCaller,
		newLink,
		now,
		event.ContributionID,
	).Error
}

func (s *Service) WindowStats(ctx context.Context, contributionID snowflake.ID, since time.Time) (usagedomain.WindowStats, error) {
	var row struct {
		Seconds float64
		Events  int64
	}
	err := s.db.WithContext(ctx).
		Model(&usagedomain.VoiceUsageEvent{}).
		Select("COALESCE(SUM(duration_seconds), 0) AS seconds, COUNT(1) AS events").
		Where("contribution_id = ? AND created_at >= ?", contributionID, since).
		Scan(&row).Error
	if err != nil {
		return usagedomain.WindowStats{}, err
	}
	return usagedomain.WindowStats{
		Minutes: row.Seconds / 60,
		Events:  row.Events,
	}, nil
}

func (s *Service) loadContribution(ctx context.Context, id snowflake.ID) (*contributiondomain.VoiceContribution, error) {
	var record contributiondomain.VoiceContribution
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) countDrop(reason string) {
	if s.metrics != nil {
		s.metrics.UsageEventsDropped.WithLabelValues(reason).Inc()
	}
}

// eventHash derives the idempotency key from the values that identify one
// logical usage event. Wall-clock time is deliberately excluded so retries of
// the same synthesis call map onto the same key.
func eventHash(contributionID snowflake.ID, req usagedomain.RecordRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s",
		contributionID,
		strings.TrimSpace(req.CharacterID),
		strings.TrimSpace(req.CallerID),
		strings.TrimSpace(req.RequestID),
	)))
	return hex.EncodeToString(sum[:])
}

func validateRecordRequest(req usagedomain.RecordRequest) error {
	if strings.TrimSpace(req.ContributionID) == "" {
		return usagedomain.ErrInvalidContribution
	}
	if strings.TrimSpace(req.CharacterID) == "" {
		return usagedomain.ErrInvalidCharacter
	}
	if strings.TrimSpace(req.CallerID) == "" {
		return usagedomain.ErrInvalidCaller
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return usagedomain.ErrInvalidRequestID
	}
	if req.DurationSeconds <= 0 {
		return usagedomain.ErrInvalidDuration
	}
	return nil
}
