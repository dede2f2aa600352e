package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/gridcity/internal/engine"
)

// Envelope is the websocket message frame.
type Envelope struct {
	Type    string          `json:"type"` // "snapshot" or "event"
	Payload json.RawMessage `json:"payload"`
}

// Client is one websocket viewer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connected viewer.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{} // Closed when Run returns
}

// NewHub creates an idle hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    map[*Client]bool{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is done. Slow clients are dropped.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			slog.Info("stream client connected", "client", c.id, "clients", len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				slog.Info("stream client disconnected", "client", c.id, "clients", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish queues a message for every client without blocking.
func (h *Hub) Publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

func (c *Client) reader(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		// The stream is one-way; inbound frames are read only to notice
		// disconnects and service control frames.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writer() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}

	// Full state first, so a fresh viewer can draw immediately.
	if msg, err := s.snapshotMessage(); err == nil {
		c.send <- msg
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go c.writer()
	go c.reader(s.hub)
}

func (s *Server) snapshotMessage() ([]byte, error) {
	var snap engine.Snapshot
	s.Eng.View(func(sim *engine.Simulation) { snap = sim.Snapshot() })
	return encodeEnvelope("snapshot", snap)
}

func encodeEnvelope(kind string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: payload})
}

// stream publishes periodic snapshots and every event to the hub.
func (s *Server) stream(ctx context.Context) {
	interval := s.StreamInterval
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	events := s.Eng.Sim.Subscribe()
	defer s.Eng.Sim.Unsubscribe(events)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if msg, err := encodeEnvelope("event", e); err == nil {
				s.hub.Publish(msg)
			}
		case <-ticker.C:
			msg, err := s.snapshotMessage()
			if err != nil {
				slog.Error("snapshot encode failed", "error", err)
				continue
			}
			s.hub.Publish(msg)
		}
	}
}
