package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"edudiff/imagegen"
	"edudiff/logging"
)

// StatusHub fans generation events out to websocket clients. It implements
// imagegen.EventSink, so the generator publishes straight into it.
//
// Start must be running for clients to register; messages published while
// it is not are buffered up to BroadcastBufferSize and then dropped.
type StatusHub struct {
	clients   map[*websocket.Conn]*wsClient
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	doneOnce   sync.Once

	recent   *CircularBuffer[imagegen.Event]
	upgrader websocket.Upgrader
	config   HubConfig
	logger   *logging.Logger
}

type wsClient struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// HubConfig tunes the StatusHub.
type HubConfig struct {
	PingInterval         time.Duration
	PongWait             time.Duration
	WriteWait            time.Duration
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
	// RecentEvents is how many events a new client receives on connect.
	RecentEvents int
}

// DefaultHubConfig returns 30s pings, 60s pong wait and a 20-event replay.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
		RecentEvents:         20,
	}
}

var _ imagegen.EventSink = (*StatusHub)(nil)

// NewStatusHub creates a hub. Call Start to begin serving clients.
func NewStatusHub(config HubConfig, logger *logging.Logger) *StatusHub {
	def := DefaultHubConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = def.ClientSendBufferSize
	}
	if config.RecentEvents <= 0 {
		config.RecentEvents = def.RecentEvents
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &StatusHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan WSMessage, config.BroadcastBufferSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		recent:     NewCircularBuffer[imagegen.Event](config.RecentEvents),
		config:     config,
		logger:     logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from the same origin; anything else is
			// already gated by the session cookie.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the hub loop until ctx is cancelled, then disconnects every
// client.
func (h *StatusHub) Start(ctx context.Context) {
	pingTicker := time.NewTicker(h.config.PingInterval)
	defer pingTicker.Stop()
	defer h.doneOnce.Do(func() { close(h.done) })

	h.logger.Debug("Status hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Status hub stopping")
			h.closeAllClients()
			return

		case conn := <-h.register:
			h.addClient(conn)

		case conn := <-h.unregister:
			h.removeClient(conn)

		case message := <-h.broadcast:
			h.broadcastToAll(message)

		case <-pingTicker.C:
			h.pingAll()
		}
	}
}

// HandleConnection upgrades the request and registers the client.
func (h *StatusHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			zap.String("remote_addr", ClientIP(r)),
			zap.Error(err),
		)
		return
	}

	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go h.readPump(conn)
}

// Publish implements imagegen.EventSink. It never blocks.
func (h *StatusHub) Publish(ev imagegen.Event) {
	h.recent.Push(ev)
	h.BroadcastMessage(NewEventMessage(ev))
}

// BroadcastMessage queues msg for every client, dropping it if the queue
// is full.
func (h *StatusHub) BroadcastMessage(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// BroadcastError sends an error message to every client.
func (h *StatusHub) BroadcastError(code, message string) {
	h.BroadcastMessage(NewErrorMessage(code, message))
}

// RecentEvents returns the replay buffer, oldest first.
func (h *StatusHub) RecentEvents() []imagegen.Event {
	return h.recent.All()
}

// ClientCount returns the number of connected clients.
func (h *StatusHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *StatusHub) addClient(conn *websocket.Conn) {
	client := &wsClient{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, h.config.ClientSendBufferSize),
	}

	h.clientsMu.Lock()
	h.clients[conn] = client
	total := len(h.clients)
	h.clientsMu.Unlock()

	go h.writePump(conn, client.send)

	initial := NewInitialMessage(InitialData{
		RecentEvents: h.recent.All(),
		Clients:      total,
	})
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	h.logger.Debug("Client connected",
		zap.String("remote_addr", client.remoteAddr),
		zap.Int("clients", total),
	)
}

func (h *StatusHub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	client, ok := h.clients[conn]
	if !ok {
		return
	}
	close(client.send)
	delete(h.clients, conn)
	h.logger.Debug("Client disconnected",
		zap.String("remote_addr", client.remoteAddr),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *StatusHub) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for conn, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, disconnecting", zap.String("remote_addr", client.remoteAddr))
			go h.requestUnregister(conn)
		}
	}
}

// pingAll uses WriteControl, which may run concurrently with writePump.
func (h *StatusHub) pingAll() {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	deadline := time.Now().Add(h.config.WriteWait)
	for conn, client := range h.clients {
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logger.Debug("Ping failed", zap.String("remote_addr", client.remoteAddr), zap.Error(err))
			go h.requestUnregister(conn)
		}
	}
}

func (h *StatusHub) closeAllClients() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for conn, client := range h.clients {
		close(client.send)
		delete(h.clients, conn)
	}
}

func (h *StatusHub) requestUnregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// readPump discards client messages; it exists to process pongs and
// notice disconnects.
func (h *StatusHub) readPump(conn *websocket.Conn) {
	defer h.requestUnregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}

func (h *StatusHub) writePump(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()

	for message := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("Websocket write failed", zap.Error(err))
			conn.Close()
			// Drain until the hub unregisters us.
			for range send {
			}
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
