package apihttp

import (
	"errors"
	"net/http"

	"prism/internal/account"
	"prism/internal/analysis"
	"prism/internal/decision"
	"prism/internal/logger"
	"prism/internal/research"
	"prism/internal/subscription"

	"github.com/gin-gonic/gin"
)

var (
	errBadRequest   = errors.New("invalid request")
	errMissingToken = errors.New("not authenticated")
	errRateLimited  = errors.New("rate limit exceeded")
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, account.ErrDuplicateEmail),
		errors.Is(err, analysis.ErrInvalidInput),
		errors.Is(err, subscription.ErrInvalidPayment),
		errors.Is(err, research.ErrNotImage),
		errors.Is(err, research.ErrFileTooLarge),
		errors.Is(err, research.ErrEmptyUpload):
		return http.StatusBadRequest
	case errors.Is(err, errMissingToken),
		errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, decision.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, decision.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, subscription.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, subscription.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {"error": msg}. Authentication failures never reveal
// which check failed; internal errors surface their message.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		msg = account.ErrInvalidCredentials.Error()
	case status == http.StatusUnauthorized:
		msg = account.ErrUnauthenticated.Error()
	case status == http.StatusInternalServerError:
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}
