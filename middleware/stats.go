package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/logging"
)

// saveEvery is how many API requests pass between statistics saves.
const saveEvery = 100

// Stats tracks visitors, and latency and errors of /api requests.
// Statistics are saved in the background every saveEvery requests.
func Stats(stats *logging.Statistics, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("stats")
	return func(c *gin.Context) {
		start := time.Now()
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		if !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			return
		}
		latency := float64(time.Since(start).Microseconds()) / 1000
		stats.TrackRequest(latency, c.Writer.Status() >= 400)

		if stats.RequestCount()%saveEvery == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					logger.Warn("failed to save statistics", zap.Error(err))
				}
			}()
		}
	}
}
