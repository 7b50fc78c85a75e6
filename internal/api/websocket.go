package api

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lane-defense/internal/game"
	"lane-defense/internal/metrics"
	"lane-defense/internal/session"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	sendBufferSize = 64 // outbound messages queued per client before drops
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// wsClient is one WebSocket connection. It implements session.Conn: Send never
// blocks the room, a full buffer drops the message.
type wsClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn, ip string) *wsClient {
	return &wsClient{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues msg for the write pump
func (c *wsClient) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		metrics.IncrementWSDropped()
		return false
	}
}

// Close stops the write pump, which closes the socket
func (c *wsClient) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump owns all writes to the socket
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
			metrics.IncrementWSMessages()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// WebSocketHub accepts game connections and wires them to rooms
type WebSocketHub struct {
	sessions  *session.Registry
	wsLimiter *WebSocketRateLimiter
	upgrader  websocket.Upgrader
	active    atomic.Int64

	commandsPerSecond float64
	commandBurst      int
}

// NewWebSocketHub creates a hub with connection limiting
func NewWebSocketHub(sessions *session.Registry, origins []string, commandsPerSecond float64, commandBurst int) *WebSocketHub {
	match := newOriginMatcher(origins)
	return &WebSocketHub{
		sessions:  sessions,
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if match.allowed(origin) {
					return true
				}
				log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
				metrics.RecordConnectionRejected("origin")
				return false
			},
		},
		commandsPerSecond: commandsPerSecond,
		commandBurst:      commandBurst,
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	return int(h.active.Load())
}

// HandleWebSocket joins a new player (?mode=solo|versus) or reclaims a reserved
// side (?session=<id>&player=<id>), then pumps commands into the room.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)
	q := r.URL.Query()

	sessionID, playerID := q.Get("session"), q.Get("player")
	mode, ok := game.ParseMode(q.Get("mode"))
	if !ok || (sessionID == "") != (playerID == "") {
		metrics.RecordConnectionRejected("invalid")
		writeError(w, "expected ?mode=solo|versus or ?session=&player=", http.StatusBadRequest)
		return
	}

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		metrics.RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		metrics.RecordConnectionRejected("ws_ip_limit")
		writeError(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	client := newWSClient(conn, ip)

	var room *session.Room
	if sessionID != "" {
		room, err = h.sessions.Rejoin(sessionID, playerID, client)
	} else {
		room, playerID, err = h.sessions.Join(mode, client)
	}
	if err != nil {
		h.refuse(conn, err)
		h.wsLimiter.Release(ip)
		return
	}

	h.active.Add(1)
	metrics.WSConnected()
	log.Printf("📱 Client %s connected to room %s as %s (%d total)", ip, room.ID, playerID, h.ClientCount())

	go client.writePump()
	go h.readPump(client, room, playerID)
}

// refuse closes a freshly upgraded socket with a reason the client can show
func (h *WebSocketHub) refuse(conn *websocket.Conn, err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, session.ErrSessionFull):
		reason = "full"
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSlotNotReserved):
		reason = "not_found"
	}
	metrics.RecordConnectionRejected(reason)
	log.Printf("⚠️ WebSocket join refused: %v", err)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
		time.Now().Add(writeWait))
	conn.Close()
}

// readPump decodes inbound commands until the socket fails
func (h *WebSocketHub) readPump(c *wsClient, room *session.Room, playerID string) {
	defer func() {
		room.Leave(playerID, c)
		c.Close()
		h.wsLimiter.Release(c.ip)
		h.active.Add(-1)
		metrics.WSDisconnected()
		log.Printf("📱 Client %s disconnected from room %s (%d remaining)", c.ip, room.ID, h.ClientCount())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := newCommandLimiter(h.commandsPerSecond, h.commandBurst)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := session.DecodeCommand(data)
		if err != nil {
			continue // malformed input is dropped without a reply
		}
		if !limiter.Allow() {
			room.Reject(playerID, cmd.Kind(), game.ReasonRateLimited)
			continue
		}
		room.Handle(playerID, cmd)
	}
}
