package priceoracle

import (
	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/config"
	"github.com/agentwood/voiceledger/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Param struct {
	fx.In

	Config  config.Config
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewFromConfig(p Param) Oracle {
	upstream := NewHTTPClient(p.Config.OracleURL, p.Config.OracleTimeout)
	return NewCachedOracle(upstream, p.Clock, p.Config.OracleCacheTTL, p.Log, p.Metrics)
}

var Module = fx.Module("priceoracle",
	fx.Provide(NewFromConfig),
)
