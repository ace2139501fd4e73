// Package server exposes channel reports as a small JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gauthierbraillon/channelscope/internal/aggregator"
	"github.com/gauthierbraillon/channelscope/internal/analytics"
	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/history"
	"github.com/gauthierbraillon/channelscope/internal/report"
	"github.com/gauthierbraillon/channelscope/internal/youtube"
)

// Reports is what the API serves; *report.Session implements it.
type Reports interface {
	ChannelSummary(ctx context.Context, channelID string) (youtube.ChannelSummary, error)
	Report(ctx context.Context, channelID string) (report.ChannelReport, error)
	GeographyReport(ctx context.Context, channelID string) ([]analytics.GeographyRow, error)
}

// History lists stored snapshots; *history.Store implements it.
type History interface {
	List(ctx context.Context, channelID string, limit int) ([]history.Snapshot, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server represents the API server
type Server struct {
	router  *gin.Engine
	reports Reports
	history History
	cfg     Config
	logger  *slog.Logger
}

// New creates the API server. history may be nil, in which case the history
// route answers 404.
func New(cfg Config, reports Reports, hist History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s := &Server{router: router, reports: reports, history: hist, cfg: cfg, logger: logger}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	channels := s.router.Group("/channels/:id")
	channels.GET("", s.getChannel)
	channels.GET("/videos", s.getVideos)
	channels.GET("/geography", s.getGeography)
	channels.GET("/history", s.getHistory)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) getChannel(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	summary, err := s.reports.ChannelSummary(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type videosResponse struct {
	Summary     youtube.ChannelSummary `json:"summary"`
	Videos      []youtube.VideoRecord  `json:"videos"`
	Insights    aggregator.Insights    `json:"insights"`
	VideosError string                 `json:"videos_error,omitempty"`
}

func (s *Server) getVideos(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	top := intQuery(c, "top", aggregator.DefaultTop)

	rep, err := s.reports.Report(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := videosResponse{
		Summary:  rep.Summary,
		Videos:   rep.Videos,
		Insights: aggregator.New(rep.Videos).Insights(top),
	}
	if rep.VideosErr != nil {
		s.logger.Warn("videos unavailable", "channel_id", c.Param("id"), "error", rep.VideosErr)
		resp.VideosError = apperrors.UserMessage(rep.VideosErr)
	}
	c.JSON(http.StatusOK, resp)
}

type geographyResponse struct {
	Countries []analytics.GeographyRow `json:"countries"`
	Total     int                      `json:"total"`
}

func (s *Server) getGeography(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	top := intQuery(c, "top", aggregator.DefaultTop)

	rows, err := s.reports.GeographyReport(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, geographyResponse{Countries: aggregator.TopCountries(rows, top), Total: len(rows)})
}

func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is not enabled"})
		return
	}

	snaps, err := s.history.List(c.Request.Context(), c.Param("id"), intQuery(c, "limit", history.DefaultLimit))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
}

// fail answers with the status of the error kind and a readable message.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		status = appErr.HTTPStatus()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperrors.UserMessage(err)})
}

func intQuery(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
