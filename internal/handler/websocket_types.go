// internal/handler/websocket_types.go
package handler

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"telemetry-service/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	ID          string
	Connection  *websocket.Conn
	Send        chan []byte
	UserAgent   string
	RemoteAddr  string
	ConnectedAt time.Time

	mutex   sync.Mutex
	sensors map[model.SensorID]bool
}

// Subscribe narrows this client's stream to the chosen sensors
func (c *Client) Subscribe(sensor model.SensorID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sensors[sensor] = true
}

// Unsubscribe removes one sensor from this client's stream
func (c *Client) Unsubscribe(sensor model.SensorID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.sensors, sensor)
}

// WantsSensor reports whether this client receives a sensor's stream.
// A client with no explicit subscriptions receives every sensor.
func (c *Client) WantsSensor(sensor model.SensorID) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.sensors) == 0 {
		return true
	}
	return c.sensors[sensor]
}

// Info snapshots the client for stats responses
func (c *Client) Info() ClientInfo {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	sensors := make([]string, 0, len(c.sensors))
	for sensor := range c.sensors {
		sensors = append(sensors, string(sensor))
	}
	sort.Strings(sensors)

	return ClientInfo{
		ID:          c.ID,
		RemoteAddr:  c.RemoteAddr,
		UserAgent:   c.UserAgent,
		ConnectedAt: c.ConnectedAt,
		Sensors:     sensors,
	}
}

// ClientInfo is a point-in-time view of one client
type ClientInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	UserAgent   string    `json:"user_agent"`
	ConnectedAt time.Time `json:"connected_at"`
	Sensors     []string  `json:"sensors,omitempty"`
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections
type ConnectionManager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	manager := &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	go manager.run()
	return manager
}

// run starts the connection manager
func (cm *ConnectionManager) run() {
	for {
		select {
		case client := <-cm.register:
			cm.mutex.Lock()
			cm.clients[client.ID] = client
			cm.mutex.Unlock()

		case client := <-cm.unregister:
			cm.mutex.Lock()
			if _, ok := cm.clients[client.ID]; ok {
				delete(cm.clients, client.ID)
				close(client.Send)
			}
			cm.mutex.Unlock()
		}
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.register <- client
}

// Unregister unregisters a client
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.unregister <- client
}

// Count returns the number of connected clients
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// GetAllClients returns every connected client
func (cm *ConnectionManager) GetAllClients() []*Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetSensorClients returns clients that receive a sensor's stream
func (cm *ConnectionManager) GetSensorClients(sensor model.SensorID) []*Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var clients []*Client
	for _, client := range cm.clients {
		if client.WantsSensor(sensor) {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		Clients:          make([]ClientInfo, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		stats.Clients = append(stats.Clients, client.Info())
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int          `json:"total_connections"`
	Clients          []ClientInfo `json:"clients"`
}
