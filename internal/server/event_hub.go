package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/halcyon-wallet/gateway/internal/approval"
)

// Event is one UI push message. The wallet frontend keys off Type to route
// it to the right panel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans wallet events out to connected UI websockets: approval
// lifecycle, session changes, network switches.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*eventClient]struct{}
	upgrader websocket.Upgrader
	redeem   func(ticket string) bool
	logger   *log.Logger
}

// NewEventHub builds a hub; redeem authorizes connects with a one-time
// ticket and may be nil in tests.
func NewEventHub(redeem func(string) bool, logger *log.Logger) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		redeem: redeem,
		logger: logger,
	}
}

func (h *EventHub) Publish(eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		h.logf("marshal event: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			go h.closeClient(client)
		}
	}
}

// PublishApprovalPending announces a new queue entry so the UI can raise
// its prompt.
func (h *EventHub) PublishApprovalPending(req approval.Request) {
	h.Publish("approval.pending", req)
}

// PublishApprovalResolved announces a terminal decision. Outcome data never
// leaves the process; only the decision does.
func (h *EventHub) PublishApprovalResolved(req approval.Request, out approval.Outcome) {
	h.Publish("approval.resolved", gin.H{
		"id":       req.ID,
		"origin":   req.Origin,
		"kind":     req.Kind,
		"decision": out.Decision,
	})
}

func (h *EventHub) ServeWS(c *gin.Context) {
	if h.redeem != nil && !h.redeem(c.Query("ticket")) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logf("upgrade websocket: %v", err)
		return
	}
	client := &eventClient{
		conn: conn,
		send: make(chan []byte, 32),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump(func() {
		h.closeClient(client)
	})
}

func (h *EventHub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		client.conn.Close()
		close(client.send)
	}
}

// closeClient evicts a client and tears down its connection. Eviction races
// (readPump exit vs slow-client drop in Publish): only the caller that
// removes the map entry may close the send channel.
func (h *EventHub) closeClient(client *eventClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	client.conn.Close()
	close(client.send)
}

func (h *EventHub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf("eventhub: "+format, args...)
	}
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *eventClient) readPump(onClose func()) {
	defer onClose()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
