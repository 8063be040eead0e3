package console

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message is one event pushed to connected console clients
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// wsClient is a single connected console client
type wsClient struct {
	conn *websocket.Conn
	send chan Message
}

// wsManager tracks connected console clients. The count of live clients is
// the visibility signal for the polling loops: no clients, no polling.
type wsManager struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool

	upgrader websocket.Upgrader
	logger   *logrus.Entry

	writeTimeout   time.Duration
	pingInterval   time.Duration
	pongTimeout    time.Duration
	maxConnections int
}

func newWSManager(logger *logrus.Logger) *wsManager {
	return &wsManager{
		clients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The listener binds to loopback only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:         logger.WithField("component", "console.ws"),
		writeTimeout:   10 * time.Second,
		pingInterval:   30 * time.Second,
		pongTimeout:    60 * time.Second,
		maxConnections: 32,
	}
}

// ActiveClients returns the number of connected console clients
func (m *wsManager) ActiveClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast queues a message for every connected client. Slow clients drop
// messages rather than stalling the sender.
func (m *wsManager) Broadcast(msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients {
		select {
		case client.send <- msg:
		default:
			m.logger.Warn("Dropping message for slow console client")
		}
	}
}

// Handle upgrades the request and services the connection until it closes
func (m *wsManager) Handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	if len(m.clients) >= m.maxConnections {
		m.mu.Unlock()
		http.Error(w, "too many console connections", http.StatusServiceUnavailable)
		return
	}
	m.mu.Unlock()

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan Message, 64),
	}

	m.register(client)
	defer m.unregister(client)

	go m.writeLoop(client)
	m.readLoop(client)
}

func (m *wsManager) register(client *wsClient) {
	m.mu.Lock()
	m.clients[client] = true
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"remote_addr": client.conn.RemoteAddr().String(),
		"total":       total,
	}).Debug("Console client connected")

	client.send <- Message{
		Type:      "welcome",
		Timestamp: time.Now().UTC(),
	}
}

func (m *wsManager) unregister(client *wsClient) {
	m.mu.Lock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
	}
	total := len(m.clients)
	m.mu.Unlock()

	client.conn.Close()
	m.logger.WithField("total", total).Debug("Console client disconnected")
}

// readLoop drains inbound frames so pings and close frames are processed.
// Console clients never send application data; the stream is one way.
func (m *wsManager) readLoop(client *wsClient) {
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(m.pongTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(m.pongTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *wsManager) writeLoop(client *wsClient) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeAll disconnects every client during shutdown
func (m *wsManager) closeAll() {
	m.mu.Lock()
	clients := make([]*wsClient, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.Unlock()

	for _, client := range clients {
		m.unregister(client)
	}
}
