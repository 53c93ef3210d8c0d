package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	contributiondomain "github.com/agentwood/voiceledger/internal/contribution/domain"
	dashboarddomain "github.com/agentwood/voiceledger/internal/dashboard/domain"
	"github.com/agentwood/voiceledger/internal/priceoracle"
	settlementdomain "github.com/agentwood/voiceledger/internal/settlement/domain"
	usagedomain "github.com/agentwood/voiceledger/internal/usage/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, contributiondomain.ErrNotOwner),
		errors.Is(err, dashboarddomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, contributiondomain.ErrInvalidTransition),
		errors.Is(err, settlementdomain.ErrStatusRegression),
		errors.Is(err, settlementdomain.ErrInvalidTransition),
		errors.Is(err, settlementdomain.ErrOverlappingPeriod):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, priceoracle.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "price unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, contributiondomain.ErrNotFound),
		errors.Is(err, usagedomain.ErrContributionNotFound),
		errors.Is(err, settlementdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrContributionNotFound),
		errors.Is(err, dashboarddomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, contributiondomain.ErrConsentRequired),
		errors.Is(err, contributiondomain.ErrMissingAudio),
		errors.Is(err, contributiondomain.ErrInvalidContributor),
		errors.Is(err, contributiondomain.ErrInvalidID),
		errors.Is(err, contributiondomain.ErrInvalidDecision),
		errors.Is(err, usagedomain.ErrInvalidContribution),
		errors.Is(err, usagedomain.ErrInvalidCharacter),
		errors.Is(err, usagedomain.ErrInvalidCaller),
		errors.Is(err, usagedomain.ErrInvalidRequestID),
		errors.Is(err, usagedomain.ErrInvalidDuration),
		errors.Is(err, settlementdomain.ErrInvalidID),
		errors.Is(err, settlementdomain.ErrInvalidStatus),
		errors.Is(err, settlementdomain.ErrInvalidPayout),
		errors.Is(err, dashboarddomain.ErrInvalidID):
		return true
	default:
		return false
	}
}
