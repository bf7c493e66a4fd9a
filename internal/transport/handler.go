package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-medreport-scanner/internal/config"
	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/internal/pipeline"
	"go-medreport-scanner/internal/share"
	"go-medreport-scanner/pkg/models"
)

// Scanner is the pipeline as seen by the presentation layer
type Scanner interface {
	State() pipeline.State
	Start(ctx context.Context) (pipeline.State, error)
	Capture(ctx context.Context) (pipeline.State, error)
	PickFromGallery(ctx context.Context, ref string) (pipeline.State, error)
	Retake(ctx context.Context) (pipeline.State, error)
	Cancel(ctx context.Context) (pipeline.State, error)
}

// HistoryStore exposes history and settings
type HistoryStore interface {
	Entries() []models.HistoryEntry
	Entry(id string) (models.HistoryEntry, bool)
	Clear(ctx context.Context) error
	Settings() models.Settings
	SaveSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
}

// Sharer dispatches summaries to share channels
type Sharer interface {
	Share(ctx context.Context, content string, channel share.ChannelName, title string) error
	Broadcast(ctx context.Context, content string, channels []share.ChannelName, title string) []models.ShareResult
}

// MetricsProvider reports run counters
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
}

// Services are the handler dependencies. Metrics is optional.
type Services struct {
	Pipeline Scanner
	History  HistoryStore
	Sharer   Sharer
	Metrics  MetricsProvider
}

// PipelineResponse is returned by every pipeline endpoint
type PipelineResponse struct {
	State pipeline.State `json:"state"`
	View  pipeline.View  `json:"view"`
}

type settingsPatchRequest struct {
	DefaultLanguage *string `json:"defaultLanguage"`
	SaveToGallery   *bool   `json:"saveToGallery"`
	DarkMode        *bool   `json:"darkMode"`
}

func NewHandler(svc Services, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	if svc.Metrics != nil {
		r.GET("/metrics", func(c *gin.Context) {
			c.JSON(http.StatusOK, svc.Metrics.GetMetrics())
		})
	}

	p := r.Group("/pipeline")
	p.GET("", getPipeline(svc.Pipeline))
	p.POST("/start", pipelineAction(cfg, func(ctx context.Context, c *gin.Context) (pipeline.State, error) {
		return svc.Pipeline.Start(ctx)
	}))
	p.POST("/capture", pipelineAction(cfg, func(ctx context.Context, c *gin.Context) (pipeline.State, error) {
		return svc.Pipeline.Capture(ctx)
	}))
	p.POST("/gallery", pipelineAction(cfg, func(ctx context.Context, c *gin.Context) (pipeline.State, error) {
		var req models.GalleryRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				return pipeline.State{}, apperrors.NewValidationError("invalid request format", err)
			}
		}
		return svc.Pipeline.PickFromGallery(ctx, req.Ref)
	}))
	p.POST("/retake", pipelineAction(cfg, func(ctx context.Context, c *gin.Context) (pipeline.State, error) {
		return svc.Pipeline.Retake(ctx)
	}))
	p.POST("/cancel", pipelineAction(cfg, func(ctx context.Context, c *gin.Context) (pipeline.State, error) {
		return svc.Pipeline.Cancel(ctx)
	}))

	r.GET("/history", listHistory(svc.History))
	r.DELETE("/history", clearHistory(svc.History))
	r.GET("/settings", getSettings(svc.History))
	r.PATCH("/settings", patchSettings(svc.History))
	r.POST("/share", shareSummary(svc, cfg))

	return r
}

func getPipeline(s Scanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.State()
		c.JSON(http.StatusOK, PipelineResponse{State: st, View: pipeline.Project(st)})
	}
}

func pipelineAction(cfg *config.Config, action func(context.Context, *gin.Context) (pipeline.State, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		st, err := action(ctx, c)
		if err != nil {
			err = controlError(err)
			respondError(c, apperrors.GetStatusCode(err), "pipeline action rejected", err)
			return
		}
		c.JSON(http.StatusOK, PipelineResponse{State: st, View: pipeline.Project(st)})
	}
}

// controlError maps pipeline sentinels to conflict errors
func controlError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrBusy),
		errors.Is(err, apperrors.ErrCancelRefused),
		errors.Is(err, apperrors.ErrInvalidTransition):
		return apperrors.NewConflictError(err.Error(), err)
	}
	return err
}

func listHistory(h HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := h.Entries()
		c.JSON(http.StatusOK, models.HistoryResponse{Entries: entries, Count: len(entries)})
	}
}

func clearHistory(h HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Clear(c.Request.Context()); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to clear history", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getSettings(h HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.Settings())
	}
}

func patchSettings(h HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settingsPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", apperrors.NewValidationError("invalid request format", err))
			return
		}

		patch := models.SettingsPatch{SaveToGallery: req.SaveToGallery, DarkMode: req.DarkMode}
		if req.DefaultLanguage != nil {
			lang, err := models.ParseLanguage(*req.DefaultLanguage)
			if err != nil {
				respondError(c, http.StatusBadRequest, "invalid settings", apperrors.NewValidationError("defaultLanguage must be english or hindi", err))
				return
			}
			patch.DefaultLanguage = &lang
		}

		settings, err := h.SaveSettings(c.Request.Context(), patch)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to save settings", err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

func shareSummary(svc Services, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ShareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", apperrors.NewValidationError("invalid request format", err))
			return
		}

		channels, err := requestedChannels(req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid share request", err)
			return
		}

		content, err := shareContent(svc, req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "nothing to share", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"channels": channels,
			"entry_id": req.EntryID,
		}).Info("Sharing summary")

		if len(channels) == 1 {
			if err := svc.Sharer.Share(ctx, content, channels[0], req.Title); err != nil {
				respondError(c, apperrors.GetStatusCode(err), "share failed", err)
				return
			}
			c.JSON(http.StatusOK, models.ShareResponse{Results: []models.ShareResult{{Channel: string(channels[0]), OK: true}}})
			return
		}

		c.JSON(http.StatusOK, models.ShareResponse{Results: svc.Sharer.Broadcast(ctx, content, channels, req.Title)})
	}
}

func requestedChannels(req models.ShareRequest) ([]share.ChannelName, error) {
	names := req.Channels
	if req.Channel != "" {
		names = append([]string{req.Channel}, names...)
	}
	if len(names) == 0 {
		return nil, apperrors.NewValidationError("channel or channels is required", nil)
	}

	seen := make(map[share.ChannelName]bool, len(names))
	channels := make([]share.ChannelName, 0, len(names))
	for _, n := range names {
		ch, err := share.ParseChannel(n)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), err)
		}
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	return channels, nil
}

// shareContent resolves the text to share: explicit content, a history entry
// or the summary of the current run, in that order.
func shareContent(svc Services, req models.ShareRequest) (string, error) {
	if strings.TrimSpace(req.Content) != "" {
		return req.Content, nil
	}

	lang := svc.History.Settings().DefaultLanguage
	if req.Language != "" {
		parsed, err := models.ParseLanguage(req.Language)
		if err != nil {
			return "", apperrors.NewValidationError("language must be english or hindi", err)
		}
		lang = parsed
	}

	if req.EntryID != "" {
		entry, ok := svc.History.Entry(req.EntryID)
		if !ok {
			return "", apperrors.NewNotFoundError(fmt.Sprintf("history entry %q not found", req.EntryID), nil)
		}
		return entry.Summary.Text(lang), nil
	}

	st := svc.Pipeline.State()
	if st.Stage == pipeline.StageComplete && st.Summary != nil {
		return st.Summary.Text(lang), nil
	}
	return "", apperrors.NewValidationError("provide content or entry_id, or complete a scan first", nil)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	if appErr, ok := apperrors.As(err); ok {
		resp.Type = string(appErr.Type)
		resp.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
	}
	c.AbortWithStatusJSON(code, resp)
}
