package service

import (
	"context"
	"testing"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	dashboarddomain "github.com/agentwood/voiceledger/internal/dashboard/domain"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	settlementservice "github.com/agentwood/voiceledger/internal/settlement/service"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
	usageservice "github.com/agentwood/voiceledger/internal/usage/service"
	"github.com/agentwood/voiceledger/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubOracle struct {
	price float64
	err   error
}

func (o *stubOracle) CurrentPrice(ctx context.Context) (float64, error) {
	return o.price, o.err
}

type stubContributionService struct {
	db *gorm.DB
}

func (s *stubContributionService) Submit(ctx context.Context, req contributiondomain.SubmitRequest) (*contributiondomain.AdmissionResult, error) {
	return nil, contributiondomain.ErrMissingAudio
}

func (s *stubContributionService) Review(ctx context.Context, id string, decision contributiondomain.ReviewDecision) (*contributiondomain.VoiceContribution, error) {
	return nil, contributiondomain.ErrNotFound
}

func (s *stubContributionService) Pause(ctx context.Context, id, contributorID string) (*contributiondomain.VoiceContribution, error) {
	return nil, contributiondomain.ErrNotFound
}

func (s *stubContributionService) Resume(ctx context.Context, id, contributorID string) (*contributiondomain.VoiceContribution, error) {
	return nil, contributiondomain.ErrNotFound
}

func (s *stubContributionService) GetByID(ctx context.Context, id string) (*contributiondomain.VoiceContribution, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, contributiondomain.ErrInvalidID
	}
	var record contributiondomain.VoiceContribution
	if err := s.db.WithContext(ctx).First(&record, "id = ?", parsed).Error; err != nil {
		return nil, contributiondomain.ErrNotFound
	}
	return &record, nil
}

type dashboardFixture struct {
	db     *gorm.DB
	svc    *Service
	clock  *clock.FakeClock
	oracle *stubOracle
	node   *snowflake.Node
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contributiondomain.VoiceContribution{},
		&usagedomain.VoiceUsageEvent{},
		&usagedomain.VoiceCharacterLink{},
		&usagedomain.VoiceCallerMarker{},
		&settlementdomain.VoiceSettlement{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	oracle := &stubOracle{price: 0.02}
	log := zap.NewNop()

	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Oracle: oracle,
	})
	settlementSvc := settlementservice.NewService(settlementservice.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Oracle: oracle,
	})

	svc := NewService(ServiceParam{
		DB:              db,
		Log:             log,
		Clock:           clk,
		Oracle:          oracle,
		ContributionSvc: &stubContributionService{db: db},
		UsageSvc:        usageSvc,
		SettlementSvc:   settlementSvc,
		Links:           repository.ProvideStore[usagedomain.VoiceCharacterLink](db),
	}).(*Service)

	return &dashboardFixture{db: db, svc: svc, clock: clk, oracle: oracle, node: node}
}

func (f *dashboardFixture) seedContribution(t *testing.T) *contributiondomain.VoiceContribution {
	t.Helper()
	record := &contributiondomain.VoiceContribution{
		ID:            f.node.Generate(),
		ContributorID: "owner-1",
		Status:        contributiondomain.StatusApproved,
		AudioFormat:   "wav",
		DisplayName:   "Warm Narrator",
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.db.Create(record).Error)
	return record
}

func (f *dashboardFixture) seedLink(t *testing.T, contributionID snowflake.ID, character string, minutes float64) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&usagedomain.VoiceCharacterLink{
		ID:             f.node.Generate(),
		ContributionID: contributionID,
		CharacterID:    character,
		TotalMinutes:   minutes,
		TotalRevenue:   minutes * 0.02,
		UsageCount:     int64(minutes * 2),
		LastUsedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}).Error)
}

func (f *dashboardFixture) seedEvent(t *testing.T, contributionID snowflake.ID, at time.Time, seconds, units float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&usagedomain.VoiceUsageEvent{
		ID:              f.node.Generate(),
		ContributionID:  contributionID,
		CharacterID:     "char-1",
		CallerID:        "caller-1",
		DurationSeconds: seconds,
		EventHash:       f.node.Generate().String(),
		RewardUnits:     units,
		PriceSnapshot:   0.02,
		CreatedAt:       at,
	}).Error)
}

func TestViewAssemblesDashboard(t *testing.T) {
	f := newDashboardFixture(t)
	contribution := f.seedContribution(t)

	for i, minutes := range []float64{5, 40, 12} {
		f.seedLink(t, contribution.ID, []string{"char-a", "char-b", "char-c"}[i], minutes)
	}
	f.clock.Advance(10 * 24 * time.Hour)
	f.seedEvent(t, contribution.ID, f.clock.Now().Add(-time.Hour), 120, 2)
	f.seedEvent(t, contribution.ID, f.clock.Now().Add(-3*24*time.Hour), 60, 1)

	view, err := f.svc.View(context.Background(), contribution.ID.String(), "owner-1")
	require.NoError(t, err)

	require.Equal(t, contribution.ID.String(), view.Contribution.ID)
	require.Equal(t, "approved", view.Contribution.Status)

	// Top characters come back ordered by minutes.
	require.Len(t, view.Characters, 3)
	require.Equal(t, "char-b", view.Characters[0].CharacterID)
	require.Equal(t, "char-c", view.Characters[1].CharacterID)

	require.Equal(t, int64(1), view.Growth.Last24h.Events)
	require.Equal(t, int64(2), view.Growth.Last7d.Events)

	require.InDelta(t, 3.0, view.Accrued.Units, 1e-9)
	require.True(t, view.Accrued.PriceAvailable)
	require.InDelta(t, 0.06, view.Accrued.CashUSD, 1e-9)

	// 10 days into a fresh 60 day period.
	require.Equal(t, 50, view.NextSettlementInDays)
}

func TestViewDeniesNonOwner(t *testing.T) {
	f := newDashboardFixture(t)
	contribution := f.seedContribution(t)

	_, err := f.svc.View(context.Background(), contribution.ID.String(), "someone-else")
	require.ErrorIs(t, err, dashboarddomain.ErrForbidden)

	_, err = f.svc.View(context.Background(), contribution.ID.String(), "")
	require.ErrorIs(t, err, dashboarddomain.ErrForbidden)
}

func TestViewUnknownContribution(t *testing.T) {
	f := newDashboardFixture(t)

	_, err := f.svc.View(context.Background(), f.node.Generate().String(), "owner-1")
	require.ErrorIs(t, err, dashboarddomain.ErrNotFound)

	_, err = f.svc.View(context.Background(), "not-a-number", "owner-1")
	require.ErrorIs(t, err, dashboarddomain.ErrInvalidID)
}

func TestViewUnpricedAccrual(t *testing.T) {
	f := newDashboardFixture(t)
	contribution := f.seedContribution(t)
	f.seedEvent(t, contribution.ID, f.clock.Now().Add(time.Hour), 120, 2)
	f.clock.Advance(24 * time.Hour)

	f.oracle.err = context.DeadlineExceeded

	view, err := f.svc.View(context.Background(), contribution.ID.String(), "owner-1")
	require.NoError(t, err)
	require.InDelta(t, 2.0, view.Accrued.Units, 1e-9)
	require.False(t, view.Accrued.PriceAvailable)
	require.Zero(t, view.Accrued.CashUSD)
}

func TestViewSettlementHistoryNewestFirst(t *testing.T) {
	f := newDashboardFixture(t)
	contribution := f.seedContribution(t)

	for i := 0; i < 12; i++ {
		now := f.clock.Now()
		require.NoError(t, f.db.Create(&settlementdomain.VoiceSettlement{
			ID:             f.node.Generate(),
			ContributionID: contribution.ID,
			PeriodStart:    now,
			PeriodEnd:      now.Add(60 * 24 * time.Hour),
			PeriodLabel:    "2025-P4",
			Status:         settlementdomain.StatusPaid,
			PayoutMethod:   settlementdomain.PayoutCash,
			CreatedAt:      now,
			UpdatedAt:      now,
		}).Error)
		f.clock.Advance(60 * 24 * time.Hour)
	}

	view, err := f.svc.View(context.Background(), contribution.ID.String(), "owner-1")
	require.NoError(t, err)
	require.Len(t, view.Settlements, 10)
	require.True(t, view.Settlements[0].PeriodStart.After(view.Settlements[1].PeriodStart))
}
