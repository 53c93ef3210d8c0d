package runner

import (
	"context"
	"testing"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSettlementService struct {
	settled []snowflake.ID
	err     error
}

func (s *stubSettlementService) RunSettlement(ctx context.Context, contributionID snowflake.ID, now time.Time) (settlementdomain.RunResult, error) {
	if s.err != nil {
		return settlementdomain.RunResult{}, s.err
	}
	s.settled = append(s.settled, contributionID)
	return settlementdomain.RunResult{Settlement: &settlementdomain.VoiceSettlement{ContributionID: contributionID}}, nil
}

func (s *stubSettlementService) Transition(ctx context.Context, req settlementdomain.TransitionRequest) (*settlementdomain.VoiceSettlement, error) {
	return nil, settlementdomain.ErrNotFound
}

func (s *stubSettlementService) ListByContribution(ctx context.Context, contributionID snowflake.ID, limit int) ([]settlementdomain.VoiceSettlement, error) {
	return nil, nil
}

type runnerFixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	svc   *stubSettlementService
}

func newRunnerFixture(t *testing.T) (*runnerFixture, *Runner) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contributiondomain.VoiceContribution{},
		&settlementdomain.VoiceSettlement{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	svc := &stubSettlementService{}

	r, err := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		Clock:         clk,
		SettlementSvc: svc,
		Config:        Config{RunInterval: time.Hour, CadenceDays: 60, BatchSize: 10},
	})
	require.NoError(t, err)

	return &runnerFixture{db: db, clock: clk, node: node, svc: svc}, r
}

func (f *runnerFixture) seedContribution(t *testing.T, status contributiondomain.ContributionStatus, createdAt time.Time) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&contributiondomain.VoiceContribution{
		ID:            id,
		ContributorID: "user-1",
		Status:        status,
		AudioFormat:   "wav",
		DisplayName:   "Voice",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}).Error)
	return id
}

func (f *runnerFixture) seedSettlement(t *testing.T, contributionID snowflake.ID, periodEnd time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&settlementdomain.VoiceSettlement{
		ID:             f.node.Generate(),
		ContributionID: contributionID,
		PeriodStart:    periodEnd.Add(-60 * 24 * time.Hour),
		PeriodEnd:      periodEnd,
		PeriodLabel:    "2025-P3",
		Status:         settlementdomain.StatusPaid,
		PayoutMethod:   settlementdomain.PayoutCash,
		CreatedAt:      periodEnd,
		UpdatedAt:      periodEnd,
	}).Error)
}

func TestFetchDueContributions(t *testing.T) {
	f, r := newRunnerFixture(t)
	now := f.clock.Now()

	dueNew := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -90))
	notDueYet := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -10))
	pendingOld := f.seedContribution(t, contributiondomain.StatusPendingReview, now.AddDate(0, 0, -90))

	dueSettled := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -200))
	f.seedSettlement(t, dueSettled, now.AddDate(0, 0, -70))

	recentlySettled := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -200))
	f.seedSettlement(t, recentlySettled, now.AddDate(0, 0, -5))

	due, err := r.FetchDueContributions(context.Background(), now, 10)
	require.NoError(t, err)
	require.ElementsMatch(t, []snowflake.ID{dueNew, dueSettled}, due)
	require.NotContains(t, due, notDueYet)
	require.NotContains(t, due, pendingOld)
	require.NotContains(t, due, recentlySettled)
}

func TestRunOnceSettlesDueContributions(t *testing.T) {
	f, r := newRunnerFixture(t)
	now := f.clock.Now()

	first := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -90))
	second := f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -61))
	f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -10))

	require.NoError(t, r.RunOnce(context.Background()))
	require.ElementsMatch(t, []snowflake.ID{first, second}, f.svc.settled)
}

func TestRunOnceJoinsPerContributionErrors(t *testing.T) {
	f, r := newRunnerFixture(t)
	now := f.clock.Now()

	f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -90))
	f.svc.err = context.DeadlineExceeded

	err := r.RunOnce(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunOnceOverlappingPeriodIsBenign(t *testing.T) {
	f, r := newRunnerFixture(t)
	now := f.clock.Now()

	f.seedContribution(t, contributiondomain.StatusApproved, now.AddDate(0, 0, -90))
	f.svc.err = settlementdomain.ErrOverlappingPeriod

	require.NoError(t, r.RunOnce(context.Background()))
}
