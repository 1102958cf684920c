// internal/handler/telemetry_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telemetry-service/internal/model"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
)

// TelemetryHandler handles sensor data HTTP requests
type TelemetryHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(sessionService *service.SessionService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "telemetry-handler"),
	}
}

// RegisterRoutes registers sensor data routes
func (h *TelemetryHandler) RegisterRoutes(router *gin.RouterGroup) {
	sensors := router.Group("/sensors")
	{
		sensors.GET("", h.ListSensors)

		sensorRoutes := sensors.Group("/:sensor_id")
		{
			sensorRoutes.GET("/stats", h.GetSensorStats)
			sensorRoutes.GET("/window", h.GetWindow)
			sensorRoutes.GET("/cumulative", h.GetCumulative)
			sensorRoutes.GET("/arrival", h.GetArrival)
		}
	}
}

// ListSensors lists the configured sensors
// @Summary List sensors
// @Description Get the configured sensor set with IDs and frame tags
// @Tags Sensors
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.SensorConfig} "Sensors retrieved successfully"
// @Router /sensors [get]
func (h *TelemetryHandler) ListSensors(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Sensors retrieved successfully", h.sessionService.Sensors())
}

// GetSensorStats returns loss accounting for one sensor
// @Summary Get sensor statistics
// @Description Get received/lost counters, loss rate and window fill for one sensor
// @Tags Sensors
// @Accept json
// @Produce json
// @Param sensor_id path string true "Sensor ID"
// @Success 200 {object} utils.APIResponse{data=model.SensorStats} "Sensor statistics"
// @Failure 404 {object} utils.APIResponse "Unknown sensor or no session"
// @Router /sensors/{sensor_id}/stats [get]
func (h *TelemetryHandler) GetSensorStats(c *gin.Context) {
	sensor := model.SensorID(c.Param("sensor_id"))

	stats, err := h.sessionService.Stats(sensor)
	if err != nil {
		h.respondReadError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sensor statistics", stats)
}

// GetWindow returns the recent fixed-size window for one channel
// @Summary Get recent window
// @Description Get the most recent window of samples for one sensor channel, zero-padded to window capacity
// @Tags Sensors
// @Accept json
// @Produce json
// @Param sensor_id path string true "Sensor ID"
// @Param channel query string false "Channel" Enums(a, b) default(a)
// @Success 200 {object} utils.APIResponse{data=object{sensor_id=string,channel=string,samples=[]number}} "Window samples"
// @Failure 400 {object} utils.APIResponse "Unknown channel"
// @Failure 404 {object} utils.APIResponse "Unknown sensor or no session"
// @Router /sensors/{sensor_id}/window [get]
func (h *TelemetryHandler) GetWindow(c *gin.Context) {
	sensor := model.SensorID(c.Param("sensor_id"))
	channel := model.Channel(c.DefaultQuery("channel", string(model.ChannelA)))

	samples, err := h.sessionService.Window(sensor, channel)
	if err != nil {
		h.respondReadError(c, err)
		return
	}

	response := gin.H{
		"sensor_id": sensor,
		"channel":   channel,
		"samples":   samples,
	}

	utils.SuccessResponse(c, http.StatusOK, "Window samples", response)
}

// GetCumulative returns everything received on one channel this session
// @Summary Get cumulative log
// @Description Get every sample received on one sensor channel since session start
// @Tags Sensors
// @Accept json
// @Produce json
// @Param sensor_id path string true "Sensor ID"
// @Param channel query string false "Channel" Enums(a, b) default(a)
// @Success 200 {object} utils.APIResponse{data=object{sensor_id=string,channel=string,count=int,samples=[]number}} "Cumulative samples"
// @Failure 400 {object} utils.APIResponse "Unknown channel"
// @Failure 404 {object} utils.APIResponse "Unknown sensor or no session"
// @Router /sensors/{sensor_id}/cumulative [get]
func (h *TelemetryHandler) GetCumulative(c *gin.Context) {
	sensor := model.SensorID(c.Param("sensor_id"))
	channel := model.Channel(c.DefaultQuery("channel", string(model.ChannelA)))

	samples, err := h.sessionService.Cumulative(sensor, channel)
	if err != nil {
		h.respondReadError(c, err)
		return
	}

	response := gin.H{
		"sensor_id": sensor,
		"channel":   channel,
		"count":     len(samples),
		"samples":   samples,
	}

	utils.SuccessResponse(c, http.StatusOK, "Cumulative samples", response)
}

// GetArrival returns inter-arrival gap percentiles for one sensor
// @Summary Get arrival timing
// @Description Get lifetime inter-arrival gap percentiles for one sensor; null until two frames have arrived
// @Tags Sensors
// @Accept json
// @Produce json
// @Param sensor_id path string true "Sensor ID"
// @Success 200 {object} utils.APIResponse{data=object{sensor_id=string,arrival=model.ArrivalSnapshot}} "Arrival timing"
// @Failure 404 {object} utils.APIResponse "Unknown sensor or no session"
// @Router /sensors/{sensor_id}/arrival [get]
func (h *TelemetryHandler) GetArrival(c *gin.Context) {
	sensor := model.SensorID(c.Param("sensor_id"))

	snapshot, err := h.sessionService.Arrival(sensor)
	if err != nil {
		h.respondReadError(c, err)
		return
	}

	response := gin.H{
		"sensor_id": sensor,
		"arrival":   snapshot,
	}

	utils.SuccessResponse(c, http.StatusOK, "Arrival timing", response)
}

// respondReadError maps service read errors onto API error codes
func (h *TelemetryHandler) respondReadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoSession):
		utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeNoSession, "No session has been started", err)
	case errors.Is(err, service.ErrUnknownSensor):
		utils.ErrorResponseWithCode(c, http.StatusNotFound, utils.ErrCodeUnknownSensor, "Unknown sensor", err)
	case errors.Is(err, service.ErrBadChannel):
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, utils.ErrCodeBadChannel, "Unknown channel", err)
	default:
		h.logger.Error("Failed to read telemetry", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to read telemetry", err)
	}
}
