package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	"github.com/agentwood/voiceledger/internal/metrics"
	"github.com/agentwood/voiceledger/internal/priceoracle"
	"github.com/agentwood/voiceledger/internal/reward"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
	"github.com/agentwood/voiceledger/pkg/db"
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

func NewService(p ServiceParam) settlementdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("settlement.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		oracle:  p.Oracle,
		metrics: p.Metrics,
	}
}

// settlementLag trails the period end behind the run time. A usage write
// stamped just before the run but committed just after it would otherwise
// fall between the closing period and the next one and never settle.
const settlementLag = time.Minute

// RunSettlement closes the accrual period (lastPeriodEnd, now - settlementLag]
// for one contribution. The contribution row is locked for the duration of the
// transaction so two runners cannot settle the same period; the unique
// (contribution_id, period_start) index backstops that lock.
func (s *Service) RunSettlement(ctx context.Context, contributionID snowflake.ID, now time.Time) (settlementdomain.RunResult, error) {
	var result settlementdomain.RunResult
	periodEnd := now.Add(-settlementLag)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := s.lockContribution(ctx, tx, contributionID)
		if err != nil {
			return err
		}

		periodStart, err := s.periodStart(ctx, tx, contribution)
		if err != nil {
			return err
		}
		if !periodStart.Before(periodEnd) {
			result = skipped("empty_period")
			return nil
		}

		var accrued struct {
			Seconds float64
			Units   float64
		}
		if err := tx.WithContext(ctx).
			Model(&usagedomain.VoiceUsageEvent{}).
			Select("COALESCE(SUM(duration_seconds), 0) AS seconds, COALESCE(SUM(reward_units), 0) AS units").
			Where("contribution_id = ? AND created_at > ? AND created_at <= ?", contributionID, periodStart, periodEnd).
			Scan(&accrued).Error; err != nil {
			return err
		}

		minutes := accrued.Seconds / 60
		if minutes < reward.MinSettlementMinutes {
			// Below the minimum the period stays open and keeps accruing
			// into the next run.
			result = skipped("below_minimum")
			return nil
		}

		// Fail closed on price: a batch valued at a stale or guessed price
		// cannot be corrected once held.
		price, err := s.oracle.CurrentPrice(ctx)
		if err != nil {
			return fmt.Errorf("settle %s: %w", contributionID, err)
		}

		batch := &settlementdomain.VoiceSettlement{
			ID:             s.genID.Generate(),
			ContributionID: contributionID,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			PeriodLabel:    periodLabel(periodEnd),
			TotalMinutes:   minutes,
			RewardUnits:    accrued.Units,
			PriceSnapshot:  price,
			AmountUSD:      accrued.Units * price,
			Status:         settlementdomain.StatusHeld,
			PayoutMethod:   settlementdomain.PayoutPendingChoice,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(batch).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return settlementdomain.ErrOverlappingPeriod
			}
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE voice_contributions
			 SET lifetime_earnings_usd = lifetime_earnings_usd + ?,
			     updated_at = ?
			 WHERE id = ?`,
			batch.AmountUSD, now, contributionID,
		).Error; err != nil {
			return err
		}

		result = settlementdomain.RunResult{Settlement: batch}
		return nil
	})
	if err != nil {
		return settlementdomain.RunResult{}, err
	}

	if result.Skipped {
		if s.metrics != nil {
			s.metrics.SettlementRunSkipped.WithLabelValues(result.SkipReason).Inc()
		}
		return result, nil
	}

	if s.metrics != nil {
		s.metrics.SettlementsCreated.Inc()
	}
	s.log.Info("settlement created",
		zap.String("contribution_id", contributionID.String()),
		zap.String("period", result.Settlement.PeriodLabel),
		zap.Float64("minutes", result.Settlement.TotalMinutes),
		zap.Float64("amount_usd", result.Settlement.AmountUSD),
	)
	return result, nil
}

func (s *Service) Transition(ctx context.Context, req settlementdomain.TransitionRequest) (*settlementdomain.VoiceSettlement, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return nil, settlementdomain.ErrInvalidID
	}
	if !req.Status.Valid() {
		return nil, settlementdomain.ErrInvalidStatus
	}
	if req.PayoutMethod != "" &&
		req.PayoutMethod != settlementdomain.PayoutCash &&
		req.PayoutMethod != settlementdomain.PayoutToken {
		return nil, settlementdomain.ErrInvalidPayout
	}

	var current settlementdomain.VoiceSettlement
	if err := s.db.WithContext(ctx).First(&current, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlementdomain.ErrNotFound
		}
		return nil, err
	}

	// Re-submitting the current status is how retried callers converge.
	if req.Status == current.Status {
		return &current, nil
	}
	if !req.Status.NextOf(current.Status) {
		if req.Status.Before(current.Status) {
			return nil, settlementdomain.ErrStatusRegression
		}
		return nil, settlementdomain.ErrInvalidTransition
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     req.Status,
		"updated_at": now,
	}
	if req.PayoutMethod != "" {
		updates["payout_method"] = req.PayoutMethod
	}
	if req.Status == settlementdomain.StatusPaid {
		updates["completed_at"] = now
	}

	// The status guard makes the update a compare-and-swap: a concurrent
	// transition wins and this one reports conflict.
	result := s.db.WithContext(ctx).
		Model(&settlementdomain.VoiceSettlement{}).
		Where("id = ? AND status = ?", id, current.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, settlementdomain.ErrInvalidTransition
	}

	var updated settlementdomain.VoiceSettlement
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", id).Error; err != nil {
		return nil, err
	}
	s.log.Info("settlement transitioned",
		zap.String("settlement_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
	)
	return &updated, nil
}

func (s *Service) ListByContribution(ctx context.Context, contributionID snowflake.ID, limit int) ([]settlementdomain.VoiceSettlement, error) {
	if limit <= 0 {
		limit = 10
	}
	var settlements []settlementdomain.VoiceSettlement
	err := s.db.WithContext(ctx).
		Where("contribution_id = ?", contributionID).
		Order("period_start DESC").
		Limit(limit).
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

func (s *Service) lockContribution(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*contributiondomain.VoiceContribution, error) {
	query := tx.WithContext(ctx)
	// sqlite has no row locks; the unique period index still protects it.
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var contribution contributiondomain.VoiceContribution
	if err := query.First(&contribution, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlementdomain.ErrContributionNotFound
		}
		return nil, err
	}
	return &contribution, nil
}

// periodStart is the end of the last settled period, or the contribution's
// creation time when nothing has been settled yet.
func (s *Service) periodStart(ctx context.Context, tx *gorm.DB, contribution *contributiondomain.VoiceContribution) (time.Time, error) {
	var last settlementdomain.VoiceSettlement
	err := tx.WithContext(ctx).
		Where("contribution_id = ?", contribution.ID).
		Order("period_end DESC").
		First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contribution.CreatedAt, nil
		}
		return time.Time{}, err
	}
	return last.PeriodEnd, nil
}

func skipped(reason string) settlementdomain.RunResult {
	return settlementdomain.RunResult{Skipped: true, SkipReason: reason}
}

// periodLabel names the bimonthly payout window a settlement lands in,
// e.g. "2025-P3" for May/June.
func periodLabel(t time.Time) string {
	return fmt.Sprintf("%d-P%d", t.Year(), (int(t.Month())+1)/2)
}
