// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	internalLink "telemetry-service/internal/link"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
	"telemetry-service/pkg/link"
)

// DiscoveryHandler handles bridge discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	bridges          *internalLink.Registry
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, bridges *internalLink.Registry, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		bridges:          bridges,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/scan", h.Scan)
		discovery.GET("/bridges", h.GetBridges)
	}
}

// Scan probes for receiver bridges
// @Summary Scan for receiver bridges
// @Description Probe serial ports, the configured TCP endpoint, and USB devices for receiver bridges. Omit type to scan everything.
// @Tags Discovery
// @Accept json
// @Produce json
// @Param type query string false "Scan kind" Enums(serial, tcp, usb)
// @Success 200 {object} utils.APIResponse{data=object{candidates_found=int,candidates=[]discovery.Candidate}} "Scan completed"
// @Failure 400 {object} utils.APIResponse "Unsupported scan kind"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) Scan(c *gin.Context) {
	kind := link.Kind(c.Query("type"))
	if kind != "" && kind != link.KindSerial && kind != link.KindTCP && kind != link.KindUSB {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unsupported scan kind", nil)
		return
	}

	candidates, err := h.discoveryService.Scan(c.Request.Context(), kind)
	if err != nil {
		h.logger.Error("Failed to scan for bridges", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan for bridges", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Scan completed", gin.H{
		"candidates_found": len(candidates),
		"candidates":       candidates,
	})
}

// GetBridges lists supported and scannable transports
// @Summary Get bridge transports
// @Description Get the transports the service can open and the ones it can scan
// @Tags Discovery
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{supported=[]string,scannable=[]string}} "Bridge transports"
// @Router /discovery/bridges [get]
func (h *DiscoveryHandler) GetBridges(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Bridge transports", gin.H{
		"supported": h.bridges.Kinds(),
		"scannable": h.discoveryService.AvailableKinds(),
	})
}
