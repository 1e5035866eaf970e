// Package http exposes tabs over a JSON API.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultEvalTimeout bounds script evaluation requested over the API.
const DefaultEvalTimeout = 10 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	manager     *session.Manager
	metrics     *monitoring.Metrics
	tracer      *tracing.Tracer
	logger      *zap.Logger
	started     time.Time
	evalTimeout time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(manager *session.Manager, metrics *monitoring.Metrics, tracer *tracing.Tracer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager:     manager,
		metrics:     metrics,
		tracer:      tracer,
		logger:      logger.Named("api"),
		started:     time.Now(),
		evalTimeout: DefaultEvalTimeout,
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/tabs", h.ListTabs)
	router.POST("/tabs", h.OpenTab)
	router.GET("/tabs/:id", h.GetTab)
	router.DELETE("/tabs/:id", h.CloseTab)

	router.POST("/tabs/:id/load", h.Load)
	router.POST("/tabs/:id/data", h.LoadData)
	router.POST("/tabs/:id/reload", h.Reload)
	router.POST("/tabs/:id/stop", h.Stop)
	router.POST("/tabs/:id/back", h.Back)
	router.POST("/tabs/:id/forward", h.Forward)
	router.POST("/tabs/:id/click", h.Click)
	router.POST("/tabs/:id/submit", h.Submit)

	router.POST("/tabs/:id/save", h.SaveTab)
	router.POST("/tabs/:id/blocking", h.SetBlocking)
	router.POST("/tabs/:id/eval", h.Evaluate)
	router.GET("/tabs/:id/screenshot", h.Screenshot)
	router.POST("/tabs/:id/screenshot", h.PostScreenshot)
	router.POST("/tabs/:id/find", h.Find)
	router.DELETE("/tabs/:id/find", h.ClearFind)
	router.POST("/tabs/:id/auth", h.Authenticate)
	router.POST("/tabs/:id/ssl-exception", h.AllowInsecureHost)
	router.POST("/tabs/:id/fullscreen/exit", h.ExitFullscreen)

	router.GET("/sessions", h.ListSessions)
	router.POST("/sessions/:id/resume", h.ResumeSession)
	router.DELETE("/sessions/:id", h.DeleteSession)

	router.POST("/erase", h.Erase)
}

// Root reports the service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ghostview",
		"version": "1.0.0",
	})
}

// Health reports liveness and tab counts
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"tabs":   len(h.manager.Tabs()),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Erase wipes all browsing data
func (h *Handlers) Erase(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "erase")
	if err := h.manager.Erase(); err != nil {
		timer.Stop("error")
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	timer.Stop("ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", string(tracing.GetTraceID(c.Request.Context()))),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// statusFor maps manager errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, session.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// tab resolves the :id parameter to a live tab, answering 404 when it is
// unknown.
func (h *Handlers) tab(c *gin.Context) (*session.Tab, bool) {
	tab, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.fail(c, statusFor(err), err)
		return nil, false
	}
	return tab, true
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return false
	}
	return true
}

func (h *Handlers) valid(c *gin.Context, errs ...error) bool {
	if err := errors.Join(errs...); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return false
	}
	return true
}
