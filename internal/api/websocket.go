package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// CORS is enforced on the HTTP routes; the socket carries only
		// the same read-only event stream.
		return true
	},
}

// WSClient is one connected event-stream consumer.
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub fans bus events out to every connected WebSocket client. Slow
// clients are dropped rather than allowed to back up the stream.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	logger     *logging.Logger
	mu         sync.RWMutex
}

// NewWSHub creates an empty hub. Run must be started for it to serve.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		logger:     logging.WithComponent("websocket"),
	}
}

// Run processes registrations and broadcasts until the process exits.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					go func(c *WSClient) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent serializes a bus event onto the stream. Registered as an
// all-events subscriber, so it must never block.
func (h *WSHub) BroadcastEvent(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("Dropping unserializable event %s: %v", event.Type, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Event stream backlog full, dropping %s", event.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *WSHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	client := &WSClient{conn: conn, send: make(chan []byte, 64), hub: h}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames so pings and close frames are handled.
// The stream is one-way; client payloads are discarded.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
