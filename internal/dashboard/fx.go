package dashboard

import (
	"github.com/agentwood/voiceledger/internal/dashboard/service"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
	"github.com/agentwood/voiceledger/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(
		repository.ProvideStore[usagedomain.VoiceCharacterLink],
		service.NewService,
	),
)
