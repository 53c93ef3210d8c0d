// Package runner drives periodic settlement of contributions whose accrual
// period has reached the payout cadence.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/lock"
	"github.com/agentwood/voiceledger/internal/reward"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config controls the runner interval and batch sizing.
type Config struct {
	RunInterval time.Duration
	CadenceDays int
	BatchSize   int
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		CadenceDays: reward.SettlementCadenceDays,
		BatchSize:   50,
		LockTTL:     2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.CadenceDays <= 0 {
		c.CadenceDays = defaults.CadenceDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	SettlementSvc settlementdomain.Service
	Locker        *lock.Locker `optional:"true"`
	Config        Config       `optional:"true"`
}

type Runner struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	svc    settlementdomain.Service
	locker *lock.Locker
}

var ErrInvalidConfig = errors.New("runner missing required dependency")

func New(p Params) (*Runner, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.SettlementSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Runner{
		db:     p.DB,
		log:    p.Log.Named("settlement.runner"),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		svc:    p.SettlementSvc,
		locker: p.Locker,
	}, nil
}

func (r *Runner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("settlement run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce settles every due contribution in one batch. Per-contribution
// failures are joined and reported together so one bad contribution does not
// starve the rest of the batch.
func (r *Runner) RunOnce(ctx context.Context) error {
	now := r.clock.Now()

	due, err := r.FetchDueContributions(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	r.log.Debug("settlement batch start", zap.Int("due", len(due)))

	var errs error
	for _, contributionID := range due {
		if ctx.Err() != nil {
			return errors.Join(errs, ctx.Err())
		}
		if err := r.settleOne(ctx, contributionID, now); err != nil {
			errs = errors.Join(errs, fmt.Errorf("contribution %s: %w", contributionID, err))
		}
	}
	return errs
}

// FetchDueContributions returns approved contributions whose open accrual
// period began at least CadenceDays ago, oldest first. The open period begins
// at the last settled period end, or at creation when never settled.
func (r *Runner) FetchDueContributions(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
	cutoff := now.AddDate(0, 0, -r.cfg.CadenceDays)

	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT c.id
		 FROM voice_contributions c
		 LEFT JOIN (
		     SELECT contribution_id, MAX(period_end) AS last_end
		     FROM voice_settlements
		     GROUP BY contribution_id
		 ) s ON s.contribution_id = c.id
		 WHERE c.status = ?
		   AND COALESCE(s.last_end, c.created_at) <= ?
		 ORDER BY COALESCE(s.last_end, c.created_at) ASC
		 LIMIT ?`,
		"approved", cutoff, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Runner) settleOne(ctx context.Context, contributionID snowflake.ID, now time.Time) error {
	if r.locker != nil {
		key := fmt.Sprintf("settlement:lock:%s", contributionID)
		token, ok, err := r.locker.TryLock(ctx, key, r.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			// Another runner holds this contribution.
			return nil
		}
		defer func() {
			if err := r.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				r.log.Warn("settlement lock release failed",
					zap.String("contribution_id", contributionID.String()),
					zap.Error(err),
				)
			}
		}()
	}

	result, err := r.svc.RunSettlement(ctx, contributionID, now)
	if err != nil {
		// A concurrent runner already settled this period.
		if errors.Is(err, settlementdomain.ErrOverlappingPeriod) {
			return nil
		}
		return err
	}
	if result.Skipped {
		r.log.Debug("settlement skipped",
			zap.String("contribution_id", contributionID.String()),
			zap.String("reason", result.SkipReason),
		)
	}
	return nil
}
