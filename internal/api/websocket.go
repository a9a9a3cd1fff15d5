package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"tank-arena/internal/game"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// maxWSMessageBytes caps inbound input messages
	maxWSMessageBytes = 1 << 10
)

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsInputMessage is an inbound input message. Type "intent" latches a
// debounced intent; type "keys" sends raw held-key state.
type wsInputMessage struct {
	Type     string `json:"type"`
	Slot     int    `json:"slot"`
	Turn     int    `json:"turn"`
	Advance  int    `json:"advance"`
	Fire     bool   `json:"fire"`
	FireHeld bool   `json:"fireHeld"`
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// It fans world snapshots out to render clients and feeds input messages into
// the InputSink.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{} // closed when Run returns
	mu         sync.RWMutex

	input    InputSink
	logger   *zap.Logger
	upgrader websocket.Upgrader

	conns   *ConnLimiter
	origins *OriginPolicy
}

// NewWebSocketHub creates a new hub with connection limiting. A nil origins
// policy admits loopback browsers only.
func NewWebSocketHub(input InputSink, origins *OriginPolicy, logger *zap.Logger) *WebSocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if origins == nil {
		origins = NewOriginPolicy(nil)
	}
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		input:      input,
		logger:     logger.Named("ws"),
		conns:      NewConnLimiter(MaxWSConnectionsTotal, MaxWSConnectionsPerIP),
		origins:    origins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits native clients (no Origin header) and allowed browsers.
func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins.Allows(origin) {
		return true
	}

	h.logger.Warn("⚠️ WebSocket connection rejected", zap.String("origin", origin))
	RecordConnectionRejected("origin")
	return false
}

// Run services registrations and broadcasts until ctx is done, then closes
// every connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("📱 Client connected", zap.String("ip", client.ip), zap.Int("total", count))
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(conn)
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("📱 Client disconnected", zap.Int("remaining", count))
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.removeLocked(conn)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			UpdateWSConnections(count)
			IncrementWSMessages()
		}
	}
}

// removeLocked drops conn and releases its IP slot. h.mu must be held.
func (h *WebSocketHub) removeLocked(conn *websocket.Conn) {
	if client, ok := h.clients[conn]; ok {
		h.conns.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.removeLocked(conn)
	}
	UpdateWSConnections(0)
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ConnStats reports open connections and admission rejections.
func (h *WebSocketHub) ConnStats() ConnStats {
	return h.conns.Stats()
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop broadcasts the latest world snapshot every interval
// until ctx is done. Unchanged snapshots are not resent.
func (h *WebSocketHub) StartBroadcastLoop(ctx context.Context, engine EngineInterface, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond // 10 updates per second
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}
			snap := engine.Snapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			h.Broadcast("world:state", snap)
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	switch err := h.conns.Acquire(ip); {
	case errors.Is(err, ErrHubFull):
		h.logger.Warn("⚠️ WebSocket connection rejected: total limit reached", zap.Int("total", MaxWSConnectionsTotal))
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	case errors.Is(err, ErrClientFull):
		h.logger.Warn("⚠️ WebSocket connection rejected: per-IP limit reached", zap.String("ip", ip))
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.String("ip", ip), zap.Error(err))
		h.conns.Release(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(maxWSMessageBytes)

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		conn.Close()
		h.conns.Release(ip)
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.handleInput(ip, message)
		}
	}()
}

// handleInput applies one inbound message. Malformed messages are counted
// and dropped; the connection stays open.
func (h *WebSocketHub) handleInput(ip string, message []byte) {
	var msg wsInputMessage
	if err := json.Unmarshal(message, &msg); err != nil || h.input == nil {
		RecordWSInput("invalid")
		return
	}

	var ok bool
	switch msg.Type {
	case "intent":
		ok = h.input.Set(msg.Slot, game.Intent{Turn: msg.Turn, Advance: msg.Advance, Fire: msg.Fire})
	case "keys":
		ok = h.input.SetKeys(msg.Slot, game.KeyState{Turn: msg.Turn, Advance: msg.Advance, FireHeld: msg.FireHeld})
	}
	if !ok {
		RecordWSInput("invalid")
		h.logger.Debug("dropped WebSocket input", zap.String("ip", ip), zap.String("type", msg.Type), zap.Int("slot", msg.Slot))
		return
	}
	RecordWSInput(msg.Type)
}
