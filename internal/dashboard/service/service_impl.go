package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	dashboarddomain "github.com/agentwood/voiceledger/internal/dashboard/domain"
	"github.com/agentwood/voiceledger/internal/priceoracle"
	"github.com/agentwood/voiceledger/internal/reward"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
	"github.com/agentwood/voiceledger/pkg/db/option"
	"github.com/agentwood/voiceledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	topCharacterLimit     = 20
	settlementHistorySize = 10
)

type ServiceParam struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Oracle          priceoracle.Oracle
	ContributionSvc contributiondomain.Service
	UsageSvc        usagedomain.Service
	SettlementSvc   settlementdomain.Service
	Links           repository.Repository[usagedomain.VoiceCharacterLink]
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	oracle          priceoracle.Oracle
	contributionSvc contributiondomain.Service
	usageSvc        usagedomain.Service
	settlementSvc   settlementdomain.Service
	links           repository.Repository[usagedomain.VoiceCharacterLink]
}

func NewService(p ServiceParam) dashboarddomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("dashboard.service"),
		clock:           p.Clock,
		oracle:          p.Oracle,
		contributionSvc: p.ContributionSvc,
		usageSvc:        p.UsageSvc,
		settlementSvc:   p.SettlementSvc,
		links:           p.Links,
	}
}

func (s *Service) View(ctx context.Context, contributionID, callerID string) (*dashboarddomain.View, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, dashboarddomain.ErrForbidden
	}

	contribution, err := s.contributionSvc.GetByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, contributiondomain.ErrInvalidID) {
			return nil, dashboarddomain.ErrInvalidID
		}
		if errors.Is(err, contributiondomain.ErrNotFound) {
			return nil, dashboarddomain.ErrNotFound
		}
		return nil, err
	}
	if contribution.ContributorID != callerID {
		return nil, dashboarddomain.ErrForbidden
	}

	now := s.clock.Now()

	links, err := s.links.Find(ctx,
		&usagedomain.VoiceCharacterLink{ContributionID: contribution.ID},
		option.WithOrderBy("total_minutes DESC"),
		option.WithLimit(topCharacterLimit),
	)
	if err != nil {
		return nil, err
	}

	settlements, err := s.settlementSvc.ListByContribution(ctx, contribution.ID, settlementHistorySize)
	if err != nil {
		return nil, err
	}

	day, err := s.usageSvc.WindowStats(ctx, contribution.ID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	week, err := s.usageSvc.WindowStats(ctx, contribution.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	accrued, err := s.accruedEstimate(ctx, contribution, settlements)
	if err != nil {
		return nil, err
	}

	// For a never-settled contribution the open period began at creation.
	anchor := lastSettledPeriodEnd(settlements)
	if anchor == nil {
		anchor = &contribution.CreatedAt
	}

	view := &dashboarddomain.View{
		Contribution: dashboarddomain.ContributionSummary{
			ID:                   contribution.ID.String(),
			DisplayName:          contribution.DisplayName,
			Status:               string(contribution.Status),
			TotalMinutesUsed:     contribution.TotalMinutesUsed,
			UniqueUsersServed:    contribution.UniqueUsersServed,
			ActiveCharacterCount: contribution.ActiveCharacterCount,
			LifetimeEarningsUSD:  contribution.LifetimeEarningsUSD,
			CreatedAt:            contribution.CreatedAt,
			ApprovedAt:           contribution.ApprovedAt,
		},
		Characters:           make([]dashboarddomain.CharacterUsage, 0, len(links)),
		Settlements:          make([]dashboarddomain.SettlementSummary, 0, len(settlements)),
		Growth:               dashboarddomain.Growth{Last24h: day, Last7d: week},
		Accrued:              accrued,
		NextSettlementInDays: reward.DaysUntilNextSettlement(anchor, now),
	}

	for _, link := range links {
		view.Characters = append(view.Characters, dashboarddomain.CharacterUsage{
			CharacterID:  link.CharacterID,
			TotalMinutes: link.TotalMinutes,
			TotalRevenue: link.TotalRevenue,
			UsageCount:   link.UsageCount,
			LastUsedAt:   link.LastUsedAt,
		})
	}
	for _, batch := range settlements {
		view.Settlements = append(view.Settlements, dashboarddomain.SettlementSummary{
			ID:           batch.ID.String(),
			PeriodLabel:  batch.PeriodLabel,
			PeriodStart:  batch.PeriodStart,
			PeriodEnd:    batch.PeriodEnd,
			TotalMinutes: batch.TotalMinutes,
			RewardUnits:  batch.RewardUnits,
			AmountUSD:    batch.AmountUSD,
			Status:       string(batch.Status),
			PayoutMethod: string(batch.PayoutMethod),
			CompletedAt:  batch.CompletedAt,
		})
	}
	return view, nil
}

// accruedEstimate sums units earned since the last settled period. The cash
// side degrades gracefully: when no price is available the units still render
// and the dashboard marks the estimate as unpriced.
func (s *Service) accruedEstimate(
	ctx context.Context,
	contribution *contributiondomain.VoiceContribution,
	settlements []settlementdomain.VoiceSettlement,
) (dashboarddomain.AccruedEstimate, error) {

	since := contribution.CreatedAt
	if end := lastSettledPeriodEnd(settlements); end != nil {
		since = *end
	}

	var units float64
	if err := s.db.WithContext(ctx).
		Model(&usagedomain.VoiceUsageEvent{}).
		Select("COALESCE(SUM(reward_units), 0)").
		Where("contribution_id = ? AND created_at > ?", contribution.ID, since).
		Scan(&units).Error; err != nil {
		return dashboarddomain.AccruedEstimate{}, err
	}

	estimate := dashboarddomain.AccruedEstimate{Units: units}
	price, err := s.oracle.CurrentPrice(ctx)
	if err != nil {
		s.log.Warn("accrued estimate unpriced",
			zap.String("contribution_id", contribution.ID.String()),
			zap.Error(err),
		)
		return estimate, nil
	}
	estimate.CurrentPrice = price
	estimate.CashUSD = units * price
	estimate.PriceAvailable = true
	return estimate, nil
}

// lastSettledPeriodEnd finds the newest period end among the settlement
// history rows, which arrive newest first.
func lastSettledPeriodEnd(settlements []settlementdomain.VoiceSettlement) *time.Time {
	if len(settlements) == 0 {
		return nil
	}
	end := settlements[0].PeriodEnd
	return &end
}
