package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/GoCCTP/burngate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event is a transfer lifecycle notification pushed to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Network   string    `json:"network"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	writeWait    = 10 * time.Second
	clientBuffer = 16
	eventBuffer  = 256
)

// Hub fans transfer events out to connected websocket clients. Slow clients
// are dropped rather than allowed to block the submit path.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	events  chan Event
	done    chan struct{}
	once    sync.Once

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub() *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	go h.run()
	return h
}

// Publish implements service.EventPublisher. It never blocks: if the event
// buffer is full the event is dropped.
func (h *Hub) Publish(eventType, network, txHash, message string) {
	ev := Event{
		Type:      eventType,
		Network:   network,
		TxHash:    txHash,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	select {
	case h.events <- ev:
	default:
		logger.Warn("Event buffer full, dropping event", "type", eventType)
	}
}

// Handle upgrades GET /ws/events to a websocket subscription.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	logger.Info("WebSocket client connected", "client_ip", c.ClientIP(), "clients", count)

	go h.writeLoop(cl)
	h.readLoop(cl)
}

func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		for cl := range h.clients {
			close(cl.send)
			cl.conn.Close()
		}
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()
	})
}

// ClientCount reports connected subscribers, for health reporting.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case ev := <-h.events:
			h.broadcast(ev)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- ev:
		default:
			// Client too slow; the read loop will reap it on the next error.
			go cl.conn.Close()
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	for ev := range cl.send {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; the stream is one-way. Its real job is
// detecting disconnects so the client can be unregistered.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[cl]; ok {
			delete(h.clients, cl)
			close(cl.send)
		}
		h.mu.Unlock()
		cl.conn.Close()
	}()

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
