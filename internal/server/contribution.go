package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
)

type submitContributionForm struct {
	DisplayName           string  `form:"display_name"`
	Description           string  `form:"description"`
	Gender                string  `form:"gender"`
	Age                   string  `form:"age"`
	Accent                string  `form:"accent"`
	Consent               bool    `form:"consent"`
	AllowEnterpriseResale bool    `form:"allow_enterprise_resale"`
	DurationSeconds       float64 `form:"duration_seconds"`
	SampleRate            int     `form:"sample_rate"`
	Channels              int     `form:"channels"`
}

type contributionResponse struct {
	ID                   string     `json:"id"`
	Status               string     `json:"status"`
	DisplayName          string     `json:"display_name"`
	QualityScore         int        `json:"quality_score"`
	NoiseScore           int        `json:"noise_score"`
	TotalMinutesUsed     float64    `json:"total_minutes_used"`
	UniqueUsersServed    int64      `json:"unique_users_served"`
	ActiveCharacterCount int64      `json:"active_character_count"`
	LifetimeEarningsUSD  float64    `json:"lifetime_earnings_usd"`
	CreatedAt            time.Time  `json:"created_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
}

type admissionResponse struct {
	Contribution contributionResponse `json:"contribution"`
	QualityScore int                  `json:"quality_score"`
	NoiseScore   int                  `json:"noise_score"`
	Warnings     []string             `json:"warnings,omitempty"`
	AutoApproved bool                 `json:"auto_approved"`
}

func toContributionResponse(record *contributiondomain.VoiceContribution) contributionResponse {
	return contributionResponse{
		ID:                   record.ID.String(),
		Status:               string(record.Status),
		DisplayName:          record.DisplayName,
		QualityScore:         record.QualityScore,
		NoiseScore:           record.NoiseScore,
		TotalMinutesUsed:     record.TotalMinutesUsed,
		UniqueUsersServed:    record.UniqueUsersServed,
		ActiveCharacterCount: record.ActiveCharacterCount,
		LifetimeEarningsUSD:  record.LifetimeEarningsUSD,
		CreatedAt:            record.CreatedAt,
		ApprovedAt:           record.ApprovedAt,
	}
}

func (s *Server) SubmitContribution(c *gin.Context) {
	var form submitContributionForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := contributiondomain.SubmitRequest{
		ContributorID:         callerID(c),
		DisplayName:           form.DisplayName,
		Description:           form.Description,
		Gender:                form.Gender,
		Age:                   form.Age,
		Accent:                form.Accent,
		Consent:               form.Consent,
		AllowEnterpriseResale: form.AllowEnterpriseResale,
	}

	if fileHeader, err := c.FormFile("audio"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		req.Audio = &contributiondomain.SampleAudio{
			Filename:        fileHeader.Filename,
			MIMEType:        fileHeader.Header.Get("Content-Type"),
			SizeBytes:       fileHeader.Size,
			DurationSeconds: form.DurationSeconds,
			SampleRate:      form.SampleRate,
			Channels:        form.Channels,
			Data:            data,
		}
	}

	result, err := s.contributionSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, admissionResponse{
		Contribution: toContributionResponse(result.Contribution),
		QualityScore: result.QualityScore,
		NoiseScore:   result.NoiseScore,
		Warnings:     result.Warnings,
		AutoApproved: result.AutoApproved,
	})
}

func (s *Server) GetContribution(c *gin.Context) {
	record, err := s.contributionSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if record.ContributorID != callerID(c) {
		AbortWithError(c, ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, toContributionResponse(record))
}

type reviewRequest struct {
	Decision contributiondomain.ReviewDecision `json:"decision"`
}

func (s *Server) ReviewContribution(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.contributionSvc.Review(c.Request.Context(), c.Param("id"), req.Decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContributionResponse(record))
}

func (s *Server) PauseContribution(c *gin.Context) {
	record, err := s.contributionSvc.Pause(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContributionResponse(record))
}

func (s *Server) ResumeContribution(c *gin.Context) {
	record, err := s.contributionSvc.Resume(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContributionResponse(record))
}
