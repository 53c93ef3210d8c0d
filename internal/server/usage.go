package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
)

// RecordUsage ingests one usage event from the synthesis pipeline. It always
// answers 202 once the payload parses: metering must never fail a synthesis
// call, so recording errors are logged and retried by the caller, not
// surfaced as failures.
func (s *Server) RecordUsage(c *gin.Context) {
	var req usagedomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.usageSvc.Record(c.Request.Context(), req); err != nil {
		s.log.Warn("usage event not recorded",
			zap.String("contribution_id", req.ContributionID),
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
