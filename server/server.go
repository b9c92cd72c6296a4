// Package server exposes the planner and the record store over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/config"
	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/middleware"
	"github.com/seo-forecaster/backend/planner"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/store"
)

// Workflows is the planner surface the handlers use.
type Workflows interface {
	ScoreList(ctx context.Context, listID uint, force bool) (*planner.Report, error)
	ScoreSelected(ctx context.Context, listID uint, ids []uint, force bool) (*planner.Report, error)
	GenerateBrief(ctx context.Context, req planner.BriefRequest) (*brief.ContentBrief, error)
	ImprovementPlan(ctx context.Context, keywordID uint, url string) (*brief.ExistingContent, error)
	Enrich(ctx context.Context, keyword, domain string, force bool) (*serp.EnrichedSerp, error)
}

// Server is the HTTP API.
type Server struct {
	cfg       config.ServerConfig
	workflows Workflows
	store     *store.Store
	stats     *logging.Statistics
	logger    *zap.Logger
	http      *http.Server
}

// New creates a Server.
func New(cfg config.ServerConfig, workflows Workflows, st *store.Store, stats *logging.Statistics, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		workflows: workflows,
		store:     st,
		stats:     stats,
		logger:    logger.Named("server"),
	}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(s.logger))
	r.Use(middleware.CORS(s.cfg.Origins()))
	r.Use(middleware.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).RateLimit())
	r.Use(middleware.Stats(s.stats, s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/statistics", s.statistics)

		api.POST("/lists", s.createList)
		api.GET("/lists", s.lists)
		api.GET("/lists/:id", s.getList)
		api.PATCH("/lists/:id", s.updateList)
		api.DELETE("/lists/:id", s.deleteList)
		api.POST("/lists/:id/keywords", s.addKeywords)
		api.POST("/lists/:id/score", s.scoreList)
		api.POST("/lists/:id/score-selected", s.scoreSelected)

		api.PATCH("/keywords/:id", s.updateKeyword)
		api.DELETE("/keywords/:id", s.deleteKeyword)
		api.GET("/keywords/:id/improvement-plan", s.improvementPlan)

		api.POST("/serp/enrich", s.enrich)

		api.POST("/briefs", s.createBrief)
		api.GET("/briefs", s.briefs)
		api.GET("/briefs/:id", s.getBrief)
		api.DELETE("/briefs/:id", s.deleteBrief)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.http = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := s.stats.Save(); err != nil {
		s.logger.Warn("failed to save statistics", zap.Error(err))
	}
	s.logger.Info("server exited")
	return nil
}
