package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/contribution/blob"
	"github.com/agentwood/voiceledger/internal/contribution/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memoryStore struct {
	keys []string
}

func (m *memoryStore) Put(_ context.Context, key string, _ []byte) (string, error) {
	m.keys = append(m.keys, key)
	return "/blobs/" + key, nil
}

type stubAnalyzer struct {
	score int
	err   error
}

func (a *stubAnalyzer) Analyze(context.Context, string) (int, error) {
	return a.score, a.err
}

type contributionFixture struct {
	db       *gorm.DB
	svc      domain.Service
	clock    *clock.FakeClock
	blobs    *memoryStore
	analyzer *stubAnalyzer
}

func newContributionFixture(t *testing.T) *contributionFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.VoiceContribution{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	blobs := &memoryStore{}
	analyzer := &stubAnalyzer{score: 20}

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Blobs:    blob.Store(blobs),
		Analyzer: analyzer,
	})

	return &contributionFixture{db: db, svc: svc, clock: clk, blobs: blobs, analyzer: analyzer}
}

func submitRequest() domain.SubmitRequest {
	return domain.SubmitRequest{
		ContributorID: "user-1",
		DisplayName:   "Warm Narrator",
		Description:   "calm storytelling voice",
		Gender:        "female",
		Accent:        "british",
		Consent:       true,
		Audio: &domain.SampleAudio{
			Filename:        "sample.wav",
			MIMEType:        "audio/wav",
			SizeBytes:       1024,
			DurationSeconds: 30,
			SampleRate:      44100,
			Channels:        1,
			Data:            []byte("riff-data"),
		},
	}
}

func TestSubmitAutoApproves(t *testing.T) {
	f := newContributionFixture(t)

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	require.True(t, result.AutoApproved)
	require.Equal(t, domain.StatusApproved, result.Contribution.Status)
	require.NotNil(t, result.Contribution.ApprovedAt)
	require.Equal(t, 100, result.QualityScore)
	require.Equal(t, 20, result.NoiseScore)
	require.Len(t, f.blobs.keys, 1)

	var stored domain.VoiceContribution
	require.NoError(t, f.db.First(&stored).Error)
	require.Equal(t, "wav", stored.AudioFormat)
	require.Equal(t, "female", stored.Traits["gender"])
}

func TestSubmitNoisySampleNeedsReview(t *testing.T) {
	f := newContributionFixture(t)
	f.analyzer.score = 60

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	require.False(t, result.AutoApproved)
	require.Equal(t, domain.StatusPendingReview, result.Contribution.Status)
	require.Nil(t, result.Contribution.ApprovedAt)
}

func TestSubmitAnalyzerFailureForcesReview(t *testing.T) {
	f := newContributionFixture(t)
	f.analyzer.err = errors.New("model timeout")

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	require.False(t, result.AutoApproved)
	require.Equal(t, 100, result.NoiseScore)
	require.Equal(t, domain.StatusPendingReview, result.Contribution.Status)
}

func TestSubmitConstraintViolationNeedsReview(t *testing.T) {
	f := newContributionFixture(t)

	req := submitRequest()
	req.Audio.DurationSeconds = 5

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.AutoApproved)
	require.Equal(t, domain.StatusPendingReview, result.Contribution.Status)
	require.Equal(t, 60, result.QualityScore)
}

func TestSubmitRejectsWithoutConsentOrAudio(t *testing.T) {
	f := newContributionFixture(t)

	req := submitRequest()
	req.Consent = false
	_, err := f.svc.Submit(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrConsentRequired)

	req = submitRequest()
	req.Audio = nil
	_, err = f.svc.Submit(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrMissingAudio)

	req = submitRequest()
	req.ContributorID = "  "
	_, err = f.svc.Submit(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidContributor)

	// No rows created for synchronous rejections.
	var count int64
	require.NoError(t, f.db.Model(&domain.VoiceContribution{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestReviewApprovesPendingContribution(t *testing.T) {
	f := newContributionFixture(t)
	f.analyzer.score = 60

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	id := result.Contribution.ID.String()

	approved, err := f.svc.Review(context.Background(), id, domain.ReviewApprove)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	// A decided contribution cannot be re-reviewed.
	_, err = f.svc.Review(context.Background(), id, domain.ReviewReject)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReviewRejects(t *testing.T) {
	f := newContributionFixture(t)
	f.analyzer.score = 60

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	rejected, err := f.svc.Review(context.Background(), result.Contribution.ID.String(), domain.ReviewReject)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.svc.Review(context.Background(), result.Contribution.ID.String(), domain.ReviewDecision("defer"))
	require.ErrorIs(t, err, domain.ErrInvalidDecision)
}

func TestPauseAndResume(t *testing.T) {
	f := newContributionFixture(t)

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	id := result.Contribution.ID.String()

	paused, err := f.svc.Pause(context.Background(), id, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaused, paused.Status)

	// Pausing twice conflicts, resuming restores accrual.
	_, err = f.svc.Pause(context.Background(), id, "user-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	resumed, err := f.svc.Resume(context.Background(), id, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, resumed.Status)
	require.True(t, resumed.Accruing())
}

func TestPauseRequiresOwnership(t *testing.T) {
	f := newContributionFixture(t)

	result, err := f.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	_, err = f.svc.Pause(context.Background(), result.Contribution.ID.String(), "someone-else")
	require.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestGetByID(t *testing.T) {
	f := newContributionFixture(t)

	_, err := f.svc.GetByID(context.Background(), "not-a-number")
	require.ErrorIs(t, err, domain.ErrInvalidID)

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	_, err = f.svc.GetByID(context.Background(), node.Generate().String())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
