package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"roadassist/internal/metrics"

	"github.com/google/uuid"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[relay] encode %s: %v", event, err)
		raw = []byte("null")
	}
	b, _ := json.Marshal(Frame{Event: event, Data: raw})
	return b
}

// Client is one live connection. The user it belongs to is recorded at
// authentication and read back on disconnect.
type Client struct {
	ID   string
	Send chan []byte

	mu     sync.Mutex
	userID string
	role   string
	closed bool
}

func NewClient(buffer int) *Client {
	return &Client{ID: uuid.NewString(), Send: make(chan []byte, buffer)}
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// bind records the identity unless the connection is already closed.
func (c *Client) bind(userID, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.userID = userID
	c.role = role
	return true
}

// trySend queues a frame without blocking; a full buffer drops it.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// close reports whether this call closed the client.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.Send)
	return true
}

// Envelope carries a frame between instances.
type Envelope struct {
	Origin string          `json:"origin"`
	Target string          `json:"target,omitempty"` // empty means every connection
	Event  string          `json:"event"`
	Frame  json.RawMessage `json:"frame"`
}

// Bridge forwards frames to other instances.
type Bridge interface {
	Publish(ctx context.Context, env Envelope) error
}

// Hub maps user IDs to their live connections. A user may hold several.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}
	bridge  Bridge
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) SetBridge(b Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// Register tracks a new, not yet authenticated, connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	metrics.RelayConnections.Set(float64(len(h.clients)))
}

// Join records userID on the connection and adds it to that user's channel.
// A closed connection cannot join again.
func (h *Hub) Join(c *Client, userID, role string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := c.UserID()
	if !c.bind(userID, role) {
		return false
	}
	if prev != "" && prev != userID {
		h.leave(c, prev)
	}
	h.clients[c] = struct{}{}
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Client]struct{})
	}
	h.byUser[userID][c] = struct{}{}
	metrics.RelayConnections.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) leave(c *Client, userID string) {
	if m := h.byUser[userID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// Remove closes and forgets the connection. It returns the connection's user
// (empty if it never authenticated), how many connections that user still
// has, and whether this call did the removal.
func (h *Hub) Remove(c *Client) (userID string, remaining int, removed bool) {
	if !c.close() {
		return c.UserID(), 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	userID = c.UserID()
	delete(h.clients, c)
	if userID != "" {
		h.leave(c, userID)
		remaining = len(h.byUser[userID])
	}
	metrics.RelayConnections.Set(float64(len(h.clients)))
	return userID, remaining, true
}

// EmitTo delivers an event to every connection of userID, here and on other
// instances. Nothing is queued for users without a connection.
func (h *Hub) EmitTo(userID, event string, data interface{}) int {
	frame := encode(event, data)
	n := h.deliverUser(userID, event, frame)
	h.forward(Envelope{Target: userID, Event: event, Frame: frame})
	return n
}

// Broadcast delivers an event to every connection except the given one.
func (h *Hub) Broadcast(event string, data interface{}, except *Client) int {
	frame := encode(event, data)
	n := h.deliverAll(event, frame, except)
	h.forward(Envelope{Event: event, Frame: frame})
	return n
}

// Reply sends an event to a single connection.
func (h *Hub) Reply(c *Client, event string, data interface{}) bool {
	ok := c.trySend(encode(event, data))
	h.count(event, ok, "buffer_full")
	return ok
}

// DeliverRemote hands a frame received from another instance to local connections.
func (h *Hub) DeliverRemote(env Envelope) int {
	if env.Target == "" {
		return h.deliverAll(env.Event, env.Frame, nil)
	}
	return h.deliverUser(env.Target, env.Event, env.Frame)
}

func (h *Hub) forward(env Envelope) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()
	if b == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Publish(ctx, env); err != nil {
		log.Printf("[relay] bridge publish %s: %v", env.Event, err)
	}
}

func (h *Hub) deliverUser(userID, event string, frame []byte) int {
	h.mu.RLock()
	m := h.byUser[userID]
	targets := make([]*Client, 0, len(m))
	for c := range m {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		metrics.RelayDropped.WithLabelValues(event, "offline").Inc()
		return 0
	}
	return h.send(targets, event, frame)
}

func (h *Hub) deliverAll(event string, frame []byte, except *Client) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.send(targets, event, frame)
}

func (h *Hub) send(targets []*Client, event string, frame []byte) int {
	n := 0
	for _, c := range targets {
		ok := c.trySend(frame)
		h.count(event, ok, "buffer_full")
		if ok {
			n++
		}
	}
	return n
}

func (h *Hub) count(event string, ok bool, reason string) {
	if ok {
		metrics.RelayDelivered.WithLabelValues(event).Inc()
		return
	}
	metrics.RelayDropped.WithLabelValues(event, reason).Inc()
}

// IsOnline reports whether userID has a live connection on this instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

func (h *Hub) ConnectionsOf(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
