package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railtatkal/tatkal-backend/internal/middleware"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a service error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err. Internal errors are logged and
// their message is not exposed.
func respondError(c *gin.Context, logger *logrus.Logger, operation string, err error) {
	status := statusFor(err)
	message := err.Error()

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"operation":  operation,
		"status":     status,
		"request_id": middleware.GetRequestID(c),
	})
	if status == http.StatusInternalServerError {
		entry.Error("Request failed")
		message = "An internal error occurred"
	} else {
		entry.Debug("Request rejected")
	}

	c.JSON(status, ErrorResponse{
		Error:   models.ErrorCode(err),
		Message: message,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_input",
		Message: message,
	})
}
