package runner

import (
	"context"

	"github.com/agentwood/voiceledger/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.runner",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Start),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.SettlementRunInterval,
		CadenceDays: cfg.SettlementCadenceDays,
		BatchSize:   cfg.SettlementBatchSize,
	}
}

func Start(lc fx.Lifecycle, cfg config.Config, r *Runner) {
	if !cfg.SettlementEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go r.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
