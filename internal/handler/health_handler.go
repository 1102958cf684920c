// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	sessionService *service.SessionService
	config         *config.Config
	logger         *utils.ServiceLogger
	startTime      time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessionService *service.SessionService, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		sessionService: sessionService,
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "health-handler"),
		startTime:      time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/link", h.LinkHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including session and link state
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	health.Checks["session"] = h.sessionCheck()

	linkCheck := h.linkCheck()
	health.Checks["link"] = linkCheck
	if linkCheck.Status == "unhealthy" {
		health.Status = "unhealthy"
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		h.logger.Warn("Health check reported unhealthy")
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// sessionCheck reports the session state; any state is a healthy service
func (h *HealthHandler) sessionCheck() CheckResult {
	info, err := h.sessionService.Status()
	if err != nil {
		return CheckResult{
			Status:  "healthy",
			Message: "No session started",
		}
	}

	return CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"session_id": info.ID.String(),
			"state":      string(info.State),
			"link_kind":  info.LinkKind,
		},
	}
}

// linkCheck reports bridge activity; a running session on a dead link is
// unhealthy
func (h *HealthHandler) linkCheck() CheckResult {
	kind, stats, err := h.sessionService.LinkStats()
	if err != nil {
		return CheckResult{
			Status:  "healthy",
			Message: "No active link",
		}
	}

	data := map[string]interface{}{
		"kind":             string(kind),
		"connected":        stats.IsConnected,
		"frames_delivered": stats.FramesDelivered,
		"bytes_read":       stats.BytesRead,
		"link_noise":       stats.LinkNoise,
		"error_count":      stats.ErrorCount,
	}

	if h.sessionService.IsRunning() && !stats.IsConnected {
		return CheckResult{
			Status:  "unhealthy",
			Message: "Session running but link is down",
			Data:    data,
		}
	}

	return CheckResult{
		Status: "healthy",
		Data:   data,
	}
}

// LinkHealthCheck reports bridge activity counters
// @Summary Link health check
// @Description Check the active bridge's connection state and counters
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse "Link is healthy"
// @Failure 404 {object} utils.APIResponse "No active link"
// @Router /health/link [get]
func (h *HealthHandler) LinkHealthCheck(c *gin.Context) {
	kind, stats, err := h.sessionService.LinkStats()
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeNoSession, "No active link", err)
		return
	}

	response := gin.H{
		"kind":             string(kind),
		"connected":        stats.IsConnected,
		"frames_delivered": stats.FramesDelivered,
		"bytes_read":       stats.BytesRead,
		"link_noise":       stats.LinkNoise,
		"error_count":      stats.ErrorCount,
		"last_activity":    stats.LastActivity,
	}

	utils.SuccessResponse(c, http.StatusOK, "Link status", response)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to accept traffic
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	// Ready as soon as configuration is loaded and sensors are registered
	if len(h.config.Sensors) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no sensors configured",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	// Simple liveness check - service is alive if it can respond
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
