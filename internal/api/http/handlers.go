package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Moonlit/backend/internal/shared/id"
	"github.com/GriffinCanCode/Moonlit/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// maxWait caps DELETE /session?wait=true
const maxWait = time.Minute

// Sessions is the part of the session manager the API drives
type Sessions interface {
	BeginAddress(ctx context.Context, address string, appID int) (id.SessionID, error)
	Interrupt()
	WaitForStopTimeout(d time.Duration) bool
	Info() streaming.Info
}

// AppLister lists the applications of a host
type AppLister interface {
	AppList(ctx context.Context, address string) ([]streaming.App, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions     Sessions
	apps         AppLister
	store        *settings.Store
	settingsPath string
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	started      time.Time
}

// NewHandlers creates a new handler set. settingsPath may be empty, in
// which case settings changes are kept in memory only.
func NewHandlers(sessions Sessions, apps AppLister, store *settings.Store, settingsPath string, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:     sessions,
		apps:         apps,
		store:        store,
		settingsPath: settingsPath,
		metrics:      metrics,
		logger:       logger,
		started:      time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/session", h.GetSession)
	r.POST("/session", h.BeginSession)
	r.DELETE("/session", h.InterruptSession)

	r.GET("/hosts/:address/apps", h.ListApps)

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.PutSettings)

	r.GET("/metrics/json", h.MetricsJSON)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Moonlit",
		"version": Version,
	})
}

// Health reports liveness and the session phase
func (h *Handlers) Health(c *gin.Context) {
	info := h.sessions.Info()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"phase":   info.Phase,
		"running": info.Running,
	})
}

// GetSession returns the session manager's state
func (h *Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Info())
}

// BeginRequest is the body of POST /session
type BeginRequest struct {
	Host  string `json:"host" binding:"required"`
	AppID int    `json:"app_id" binding:"required"`
}

// BeginSession starts a session. It answers as soon as the worker is
// spawned; progress is observed through GET /session or /events.
func (h *Handlers) BeginSession(c *gin.Context) {
	var req BeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if err := validateBegin(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sid, err := h.sessions.BeginAddress(ctx, req.Host, req.AppID)
	if err != nil {
		status := beginStatus(err)
		traceID := tracing.GetTraceID(ctx)
		h.logger.Warn("Session begin failed",
			zap.String("host", req.Host),
			zap.Int("app_id", req.AppID),
			zap.Int("status", status),
			zap.String("trace_id", string(traceID)),
			zap.String("span_id", string(tracing.GetSpanID(ctx))),
			zap.Error(err))

		body := gin.H{"error": err.Error()}
		if kind := streaming.KindOf(err); kind != 0 {
			body["kind"] = kind
		}
		if traceID != "" {
			body["trace_id"] = traceID
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sid,
		"host":       req.Host,
		"app_id":     req.AppID,
	})
}

func validateBegin(req BeginRequest) error {
	if err := utils.ValidateHostAddress(req.Host); err != nil {
		return err
	}
	return utils.ValidateAppID(req.AppID)
}

func beginStatus(err error) int {
	switch {
	case errors.Is(err, streaming.ErrSessionAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, streaming.ErrUnknownApp):
		return http.StatusNotFound
	case errors.Is(err, streaming.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, streaming.KindHostUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InterruptSession asks the session to stop. With wait=true it also waits
// for teardown, bounded by timeout (default 10s).
func (h *Handlers) InterruptSession(c *gin.Context) {
	h.sessions.Interrupt()

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, h.sessions.Info())
		return
	}

	timeout := 10 * time.Second
	if raw := c.Query("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		timeout = min(d, maxWait)
	}

	if !h.sessions.WaitForStopTimeout(timeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "session did not stop in time",
			"session": h.sessions.Info(),
		})
		return
	}
	c.JSON(http.StatusOK, h.sessions.Info())
}

// ListApps returns the applications a host can launch
func (h *Handlers) ListApps(c *gin.Context) {
	address := strings.TrimSpace(c.Param("address"))
	if err := utils.ValidateHostAddress(address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apps, err := h.apps.AppList(c.Request.Context(), address)
	if err != nil {
		var herr *streaming.HostError
		if errors.As(err, &herr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": herr.Error(), "code": herr.Code})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"host": address,
		"apps": apps,
	})
}

// GetSettings returns the current streaming settings
func (h *Handlers) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Get())
}

// PutSettings replaces the streaming settings. A running session keeps
// the settings it started with.
func (h *Handlers) PutSettings(c *gin.Context) {
	next := settings.Default()
	if err := c.ShouldBindJSON(next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Set(next); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if h.settingsPath != "" {
		if err := settings.Save(h.settingsPath, next); err != nil {
			h.logger.Error("Failed to save settings", zap.String("path", h.settingsPath), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settings applied but not saved"})
			return
		}
	}

	h.logger.Info("Settings updated", zap.Uint64("version", h.store.Version()))
	c.JSON(http.StatusOK, h.store.Get())
}

// MetricsJSON returns a JSON view of the service metrics
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics": h.metrics.Snapshot(),
		"session": h.sessions.Info(),
	})
}
