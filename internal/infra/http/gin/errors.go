package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/handlers/catalog"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/uow"
	svcsearch "innkeep/internal/app/services/search"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	"innkeep/internal/domain/shared/money"
	domaintariffs "innkeep/internal/domain/tariffs"
	"innkeep/internal/infra/db/mongo"
	"innkeep/internal/infra/security"
	"innkeep/internal/infra/validation"
)

var badRequest = []error{
	middleware.ErrValidation,
	svcsearch.ErrInvalidRequest,
	catalog.ErrInvalidDate,
	catalog.ErrHoldTarget,
	domainacc.ErrIDRequired,
	domainacc.ErrNameRequired,
	domainacc.ErrCapacity,
	domainacc.ErrUnknownCategory,
	domaintariffs.ErrPeriodIDRequired,
	domaintariffs.ErrPeriodName,
	domaintariffs.ErrPeriodBounds,
	domaintariffs.ErrMinStay,
	domaintariffs.ErrRuleIDRequired,
	domaintariffs.ErrPeopleTier,
	domaintariffs.ErrNightlyPrice,
	domaintariffs.ErrRulePeriod,
	domaintariffs.ErrUnknownPaymentMethod,
	domainmaint.ErrHoldIDRequired,
	domainmaint.ErrAccommodationReq,
	money.ErrInvalidAmount,
	money.ErrInvalidCurrency,
}

var notFound = []error{
	domainacc.ErrNotFound,
	domaintariffs.ErrPeriodNotFound,
	domaintariffs.ErrRuleNotFound,
	domainmaint.ErrHoldNotFound,
}

var conflict = []error{
	domainacc.ErrCategoryImmutable,
	domaintariffs.ErrPeriodOverlap,
	domaintariffs.ErrDuplicateRule,
	domainmaint.ErrHoldClosed,
	mongo.ErrConcurrentUpdate,
	uow.ErrConflict,
	middleware.ErrReplayedFailure,
	middleware.ErrIdempotencyConflict,
}

func statusFor(err error) int {
	var dataErr *svcsearch.DataAccessError
	switch {
	case errors.Is(err, security.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, security.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &dataErr):
		return http.StatusServiceUnavailable
	case matchAny(err, badRequest):
		return http.StatusBadRequest
	case matchAny(err, notFound):
		return http.StatusNotFound
	case matchAny(err, conflict):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrSnapshotStoreMissing):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError maps err to a status and renders {"error": ...}. Validation
// failures carry their field list; server errors hide the cause.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", "status", status, "path", c.FullPath(), "error", err)
		}
		if status == http.StatusInternalServerError {
			body = gin.H{"error": "internal error"}
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func respondWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
