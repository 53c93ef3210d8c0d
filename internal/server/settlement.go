package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
)

type settlementResponse struct {
	ID             string     `json:"id"`
	ContributionID string     `json:"contribution_id"`
	PeriodLabel    string     `json:"period_label"`
	PeriodStart    time.Time  `json:"period_start"`
	PeriodEnd      time.Time  `json:"period_end"`
	TotalMinutes   float64    `json:"total_minutes"`
	RewardUnits    float64    `json:"reward_units"`
	AmountUSD      float64    `json:"amount_usd"`
	Status         string     `json:"status"`
	PayoutMethod   string     `json:"payout_method"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toSettlementResponse(batch *settlementdomain.VoiceSettlement) settlementResponse {
	return settlementResponse{
		ID:             batch.ID.String(),
		ContributionID: batch.ContributionID.String(),
		PeriodLabel:    batch.PeriodLabel,
		PeriodStart:    batch.PeriodStart,
		PeriodEnd:      batch.PeriodEnd,
		TotalMinutes:   batch.TotalMinutes,
		RewardUnits:    batch.RewardUnits,
		AmountUSD:      batch.AmountUSD,
		Status:         string(batch.Status),
		PayoutMethod:   string(batch.PayoutMethod),
		CompletedAt:    batch.CompletedAt,
	}
}

func (s *Server) TransitionSettlement(c *gin.Context) {
	var req settlementdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")

	batch, err := s.settlementSvc.Transition(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettlementResponse(batch))
}
