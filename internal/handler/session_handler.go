// internal/handler/session_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telemetry-service/internal/model"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
	"telemetry-service/pkg/link"
)

// SessionHandler handles acquisition session HTTP requests
type SessionHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	session := router.Group("/session")
	{
		session.POST("/start", h.StartSession)
		session.POST("/stop", h.StopSession)
		session.GET("", h.GetSession)
		session.GET("/summary", h.GetSummary)
	}
}

// StartSessionRequest optionally overrides the configured transport
type StartSessionRequest struct {
	LinkKind string `json:"link_kind,omitempty" example:"serial"`
}

// StartSession begins a new acquisition session
// @Summary Start acquisition session
// @Description Open the configured link and start decoding frames. At most one session runs at a time.
// @Tags Session
// @Accept json
// @Produce json
// @Param request body StartSessionRequest false "Optional transport override"
// @Success 201 {object} utils.APIResponse{data=model.SessionInfo} "Session started"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "A session is already active"
// @Failure 503 {object} utils.APIResponse "Link could not be opened"
// @Router /session/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	kind := link.Kind(req.LinkKind)
	if req.LinkKind != "" && !kind.IsValid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid link kind", nil)
		return
	}

	info, err := h.sessionService.Start(c.Request.Context(), kind)
	if err != nil {
		if errors.Is(err, service.ErrSessionActive) {
			utils.ErrorResponseWithCode(c, http.StatusConflict, utils.ErrCodeSessionActive, "A session is already active", err)
			return
		}

		h.logger.Error("Failed to start session", zap.Error(err))
		utils.ErrorResponseWithCode(c, http.StatusServiceUnavailable, utils.ErrCodeLinkUnavailable, "Failed to open link", err)
		return
	}

	h.logger.Info("Session started",
		zap.String("session_id", info.ID.String()),
		zap.String("link_kind", info.LinkKind),
	)
	utils.SuccessResponse(c, http.StatusCreated, "Session started", info)
}

// StopSession ends the active acquisition session
// @Summary Stop acquisition session
// @Description Stop the session and return the end-of-run loss accounting summary
// @Tags Session
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.SessionSummary} "Session stopped"
// @Failure 404 {object} utils.APIResponse "No session has been started"
// @Router /session/stop [post]
func (h *SessionHandler) StopSession(c *gin.Context) {
	summary, err := h.sessionService.Stop(model.StopReasonUser)
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeNoSession, "No session has been started", err)
			return
		}

		h.logger.Error("Failed to stop session", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to stop session", err)
		return
	}

	h.logger.Info("Session stopped", zap.String("session_id", summary.Session.ID.String()))
	utils.SuccessResponse(c, http.StatusOK, "Session stopped", summary)
}

// GetSession returns the current session state
// @Summary Get session state
// @Description Get the current session, running or stopped
// @Tags Session
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.SessionInfo} "Session state"
// @Failure 404 {object} utils.APIResponse "No session has been started"
// @Router /session [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	info, err := h.sessionService.Status()
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeNoSession, "No session has been started", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session state", info)
}

// GetSummary returns the most recent end-of-run summary
// @Summary Get session summary
// @Description Get the loss accounting summary of the most recently stopped session
// @Tags Session
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.SessionSummary} "Session summary"
// @Failure 404 {object} utils.APIResponse "No summary available"
// @Router /session/summary [get]
func (h *SessionHandler) GetSummary(c *gin.Context) {
	summary, err := h.sessionService.Summary()
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeNoSession, "No summary available", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session summary", summary)
}
