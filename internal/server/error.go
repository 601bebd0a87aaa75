package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	"github.com/nominalabs/nomina/internal/formula"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrInvalidRequest = &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "malformed request body"}
	ErrUnauthorized   = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid credentials"}
	ErrInternal       = &apiError{Status: http.StatusInternalServerError, Code: "internal", Message: "internal error"}
)

func invalidRequestError() error { return ErrInvalidRequest }

func newValidationError(message string) error {
	return &apiError{Status: http.StatusUnprocessableEntity, Code: "validation_failed", Message: message}
}

// AbortWithError translates domain errors into HTTP responses. Unknown errors
// become opaque 500s; the detail stays in the server log, not the response.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := classifyDomainError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": ErrInternal})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{
		Status:  status,
		Code:    http.StatusText(status),
		Message: err.Error(),
	}})
}

func classifyDomainError(err error) int {
	var provErr *stampingdomain.ProviderError

	switch {
	case formula.IsEvaluationError(err),
		errors.Is(err, conceptdomain.ErrInvalidFormula),
		errors.Is(err, conceptdomain.ErrInvalidTaxPolicy),
		errors.Is(err, perioddomain.ErrInvalidDates),
		errors.Is(err, stampingdomain.ErrReasonRequired):
		return http.StatusUnprocessableEntity

	case errors.Is(err, employeedomain.ErrScopeDenied):
		return http.StatusForbidden

	case errors.Is(err, perioddomain.ErrPeriodNotFound),
		errors.Is(err, payrolldomain.ErrDetailNotFound),
		errors.Is(err, stampingdomain.ErrDocumentNotFound),
		errors.Is(err, conceptdomain.ErrUnknownTemplate),
		errors.Is(err, conceptdomain.ErrConceptNotFound):
		return http.StatusNotFound

	case errors.Is(err, payrolldomain.ErrCalculationInProgress),
		errors.Is(err, perioddomain.ErrStatusConflict),
		errors.Is(err, perioddomain.ErrPeriodLocked),
		errors.Is(err, perioddomain.ErrInvalidStatus),
		errors.Is(err, perioddomain.ErrDuplicatePeriod),
		errors.Is(err, conceptdomain.ErrDuplicateCode),
		errors.Is(err, conceptdomain.ErrCyclicDependency),
		errors.Is(err, payrolldomain.ErrNoActiveConcepts),
		errors.Is(err, payrolldomain.ErrEmptyRoster),
		errors.Is(err, stampingdomain.ErrDocumentExists),
		errors.Is(err, stampingdomain.ErrNotStamped),
		errors.Is(err, stampingdomain.ErrAlreadyCancelled),
		errors.Is(err, stampingdomain.ErrCancelWindowClosed),
		errors.Is(err, stampingdomain.ErrDocumentImmutable),
		errors.Is(err, stampingdomain.ErrStampClaimHeld),
		errors.Is(err, stampingdomain.ErrRetriesExhausted):
		return http.StatusConflict

	case errors.As(err, &provErr):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
