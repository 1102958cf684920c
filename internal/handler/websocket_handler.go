// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telemetry-service/internal/model"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
)

// WebSocketHandler streams live sensor data and events to clients
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	sessionService *service.SessionService
	eventBus       *EventBus
	streamInterval time.Duration
	logger         *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	sessionService *service.SessionService,
	eventBus *EventBus,
	streamInterval time.Duration,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// In production, implement proper origin checking
			return true
		},
	}

	handler := &WebSocketHandler{
		upgrader:       upgrader,
		connections:    NewConnectionManager(),
		sessionService: sessionService,
		eventBus:       eventBus,
		streamInterval: streamInterval,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
	}

	// Forward bus events to connected clients
	go handler.forwardEvents()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stream", h.HandleStream)
	router.GET("/stats", h.GetStats)
}

// HandleStream handles live streaming WebSocket connections
func (h *WebSocketHandler) HandleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
		sensors:     make(map[model.SensorID]bool),
	}

	h.connections.Register(client)
	h.logger.Info("Stream client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.sendInitialState(client)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// GetStats returns connection statistics
// @Summary WebSocket connection statistics
// @Description Get the connected stream clients and their subscriptions
// @Tags Stream
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionStats} "Connection statistics"
// @Router /ws/stats [get]
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection statistics", h.connections.GetStats())
}

// StartStreaming snapshots window and stats at each interval and fans them
// out to subscribed clients. The loop notices a stopped session within one
// interval and goes quiet until the next one starts.
func (h *WebSocketHandler) StartStreaming(ctx context.Context) {
	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	h.logger.Info("WebSocket streaming started", zap.Duration("interval", h.streamInterval))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket streaming stopped")
			return
		case <-ticker.C:
			h.broadcastSensorData()
		}
	}
}

// broadcastSensorData pushes one tick's snapshots to interested clients
func (h *WebSocketHandler) broadcastSensorData() {
	if h.connections.Count() == 0 || !h.sessionService.IsRunning() {
		return
	}

	stats, err := h.sessionService.AllStats()
	if err != nil {
		return
	}

	for i := range stats {
		stat := &stats[i]

		clients := h.connections.GetSensorClients(stat.ID)
		if len(clients) == 0 {
			continue
		}

		channelA, errA := h.sessionService.Window(stat.ID, model.ChannelA)
		channelB, errB := h.sessionService.Window(stat.ID, model.ChannelB)
		if errA != nil || errB != nil {
			continue
		}

		message := &WebSocketMessage{
			Type: "sensor_data",
			Data: map[string]interface{}{
				"sensor_id": stat.ID,
				"stats":     stat,
				"channel_a": channelA,
				"channel_b": channelB,
			},
			Timestamp: time.Now(),
		}

		h.broadcastToClients(clients, message)
	}
}

// forwardEvents fans bus events out to every connected client
func (h *WebSocketHandler) forwardEvents() {
	started := h.eventBus.Subscribe(model.EventSessionStarted)
	stopped := h.eventBus.Subscribe(model.EventSessionStopped)
	linkErrors := h.eventBus.Subscribe(model.EventLinkError)
	scans := h.eventBus.Subscribe(model.EventScanCompleted)

	for {
		select {
		case event := <-started:
			h.BroadcastEvent(event)
		case event := <-stopped:
			h.BroadcastEvent(event)
		case event := <-linkErrors:
			h.BroadcastEvent(event)
		case event := <-scans:
			h.BroadcastEvent(event)
		}
	}
}

// BroadcastEvent sends a telemetry event to every connected client
func (h *WebSocketHandler) BroadcastEvent(event model.TelemetryEvent) {
	message := &WebSocketMessage{
		Type:      "event",
		Data:      event,
		Timestamp: event.Timestamp,
	}

	h.broadcastToClients(h.connections.GetAllClients(), message)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	// Set read deadline and pong handler
	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		h.handleSubscription(client, message)
	case "unsubscribe":
		h.handleUnsubscription(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// handleSubscription narrows a client's stream to requested sensors
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage) {
	sensor, ok := h.sensorFromMessage(message)
	if !ok {
		h.sendError(client, "sensor_id is required")
		return
	}
	if !h.knownSensor(sensor) {
		h.sendError(client, "unknown sensor: "+string(sensor))
		return
	}

	client.Subscribe(sensor)
	h.logger.Info("Client subscribed to sensor",
		zap.String("client_id", client.ID),
		zap.String("sensor_id", string(sensor)),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type: "subscription_confirmed",
		Data: map[string]interface{}{
			"sensor_id": sensor,
		},
		Timestamp: time.Now(),
	})
}

// handleUnsubscription removes a sensor from a client's stream
func (h *WebSocketHandler) handleUnsubscription(client *Client, message *WebSocketMessage) {
	sensor, ok := h.sensorFromMessage(message)
	if !ok {
		return
	}

	client.Unsubscribe(sensor)
	h.logger.Info("Client unsubscribed from sensor",
		zap.String("client_id", client.ID),
		zap.String("sensor_id", string(sensor)),
	)
}

// sensorFromMessage pulls the sensor_id out of a client message
func (h *WebSocketHandler) sensorFromMessage(message *WebSocketMessage) (model.SensorID, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}

	sensor, ok := data["sensor_id"].(string)
	if !ok || sensor == "" {
		return "", false
	}
	return model.SensorID(sensor), true
}

// knownSensor checks the sensor against the configured set
func (h *WebSocketHandler) knownSensor(sensor model.SensorID) bool {
	for _, cfg := range h.sessionService.Sensors() {
		if cfg.ID == sensor {
			return true
		}
	}
	return false
}

// sendInitialState sends the session state and sensor set to a new client
func (h *WebSocketHandler) sendInitialState(client *Client) {
	data := map[string]interface{}{
		"sensors": h.sessionService.Sensors(),
	}

	if info, err := h.sessionService.Status(); err == nil {
		data["session"] = info
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_state",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	message := &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	}
	h.sendMessage(client, message)
}

// broadcastToClients sends a message to the given clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}
