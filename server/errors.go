package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/planner"
	"github.com/seo-forecaster/backend/scoring"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/store"
)

// errBadRequest wraps request validation failures.
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, brief.ErrInvalidInput),
		errors.Is(err, planner.ErrNoKeywords):
		return http.StatusBadRequest
	case errors.Is(err, brief.ErrUpstreamUnavailable),
		errors.Is(err, serp.ErrProviderUnavailable),
		errors.Is(err, serp.ErrNoResults),
		errors.Is(err, scoring.ErrNoSerpData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": ...}. Internal errors are logged and answered
// with a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := logging.SanitizeError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("error", msg))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
