// Package api exposes the scan orchestrator over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/pipeline"
	"go.uber.org/zap"
)

// RequesterHeader carries the caller's opaque identity
const RequesterHeader = "X-User-ID"

// Service is the orchestrator surface the API needs
type Service interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (models.Job, error)
	Get(ctx context.Context, id string) (models.Job, error)
	GetResult(ctx context.Context, id string) (models.Result, error)
	Cancel(ctx context.Context, id string) (models.Job, error)
	List(ctx context.Context, requester string) ([]models.Job, error)
	Latest(ctx context.Context, requester string) ([]models.Result, error)
}

var _ Service = (*pipeline.Orchestrator)(nil)

// Server serves the scan API
type Server struct {
	svc    Service
	logger *zap.Logger
	now    func() time.Time
}

func NewServer(svc Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger.Named("api"), now: time.Now}
}

// Handler builds the gin router
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/scan", s.startHandler)
	api.GET("/scan/:id", s.statusHandler)
	api.GET("/scan/:id/result", s.resultHandler)
	api.POST("/scan/:id/cancel", s.cancelHandler)
	api.GET("/scan/:id/vulnerabilities", s.vulnerabilitiesHandler)
	api.GET("/scans", s.historyHandler)

	api.GET("/report/latest", s.latestHandler)
	api.GET("/report/:id", s.reportHandler)
	api.GET("/report/:id/summary", s.summaryHandler)
	api.GET("/report/:id/export", s.exportHandler)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts the
// listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("requester", requester(c)))
	}
}

// requester returns the caller identity, or models.AnonymousRequester
func requester(c *gin.Context) string {
	if id := c.GetHeader(RequesterHeader); id != "" {
		return id
	}
	return models.AnonymousRequester
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidTarget), errors.Is(err, models.ErrInvalidPreset):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
	case errors.Is(err, models.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "scan not ready"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "scan already finished"})
	case errors.Is(err, pipeline.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("id", c.Param("id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
