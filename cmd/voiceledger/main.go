package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/config"
	"github.com/agentwood/voiceledger/internal/lock"
	"github.com/agentwood/voiceledger/internal/logger"
	"github.com/agentwood/voiceledger/internal/metrics"
	"github.com/agentwood/voiceledger/internal/migration"
	"github.com/agentwood/voiceledger/internal/priceoracle"
	"github.com/agentwood/voiceledger/internal/server"
	"github.com/agentwood/voiceledger/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure.
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		lock.Module,
		migration.Module,

		// Domain services and the HTTP surface.
		priceoracle.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
