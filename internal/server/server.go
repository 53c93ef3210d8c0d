package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agentwood/voiceledger/internal/config"
	"github.com/agentwood/voiceledger/internal/contribution"
	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	"github.com/agentwood/voiceledger/internal/dashboard"
	dashboarddomain "github.com/agentwood/voiceledger/internal/dashboard/domain"
	"github.com/agentwood/voiceledger/internal/settlement"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	"github.com/agentwood/voiceledger/internal/settlement/runner"
	"github.com/agentwood/voiceledger/internal/usage"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	contribution.Module,
	usage.Module,
	settlement.Module,
	runner.Module,
	dashboard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(registry *prometheus.Registry) *gin.Engine {
	return NewEngine(registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	contributionSvc contributiondomain.Service
	usageSvc        usagedomain.Service
	settlementSvc   settlementdomain.Service
	dashboardSvc    dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	ContributionSvc contributiondomain.Service
	UsageSvc        usagedomain.Service
	SettlementSvc   settlementdomain.Service
	DashboardSvc    dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		contributionSvc: p.ContributionSvc,
		usageSvc:        p.UsageSvc,
		settlementSvc:   p.SettlementSvc,
		dashboardSvc:    p.DashboardSvc,
	}

	svc.registerVoiceRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerVoiceRoutes() {
	v1 := s.engine.Group("/v1/voice")

	v1.POST("/contributions", s.CallerRequired(), s.SubmitContribution)
	v1.GET("/contributions/:id", s.CallerRequired(), s.GetContribution)
	v1.GET("/contributions/:id/dashboard", s.CallerRequired(), s.GetDashboard)
	v1.POST("/contributions/:id/pause", s.CallerRequired(), s.PauseContribution)
	v1.POST("/contributions/:id/resume", s.CallerRequired(), s.ResumeContribution)

	// Internal surfaces: the synthesis pipeline and the review/payout tools.
	v1.POST("/usage", s.RecordUsage)
	v1.POST("/contributions/:id/review", s.ReviewContribution)
	v1.POST("/settlements/:id/transition", s.TransitionSettlement)
}
