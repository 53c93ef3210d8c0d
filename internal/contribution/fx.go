package contribution

import (
	"github.com/agentwood/voiceledger/internal/config"
	"github.com/agentwood/voiceledger/internal/contribution/blob"
	"github.com/agentwood/voiceledger/internal/contribution/noise"
	"github.com/agentwood/voiceledger/internal/contribution/service"
	"go.uber.org/fx"
)

// The static noise score stands in for the external analyzer service; 25 sits
// inside the auto-approval band so clean uploads are not forced into review.
const defaultNoiseScore = 25

var Module = fx.Module("contribution.service",
	fx.Provide(
		func(cfg config.Config) blob.Store { return blob.NewLocalStore(cfg.VoiceStorageDir) },
		func() noise.Analyzer { return noise.NewStaticAnalyzer(defaultNoiseScore) },
		service.NewService,
	),
)
