package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 256

// Client is one open student connection. The owner drains Send and writes
// each frame to the socket; the hub closes Send when the client leaves.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient() *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, sendBuffer),
	}
}

// SnapshotFunc renders the catch-up frame for a newly registered client.
type SnapshotFunc func() ([]byte, error)

type directMessage struct {
	clientID string
	data     []byte
	ok       chan bool
}

// Hub is the set of open connections of one hosted room. All membership
// changes and fan-out happen on the run goroutine, so a new client gets its
// catch-up frame before any broadcast queued after its registration.
type Hub struct {
	name       string
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMessage

	mu       sync.RWMutex
	snapshot SnapshotFunc
	count    int

	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		direct:     make(chan directMessage),
		done:       make(chan struct{}),
		logger:     logger.With("hub", name),
	}
}

func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; ok {
				h.remove(client.ID)
				h.logger.Info("connection left", "client_id", client.ID, "remaining", len(h.clients))
			}

		case message := <-h.broadcast:
			var slow []string
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					slow = append(slow, id)
				}
			}
			for _, id := range slow {
				h.logger.Warn("send buffer full, dropping connection", "client_id", id)
				h.remove(id)
			}

		case msg := <-h.direct:
			client, ok := h.clients[msg.clientID]
			if ok {
				select {
				case client.Send <- msg.data:
				default:
					h.logger.Warn("send buffer full, dropping connection", "client_id", client.ID)
					h.remove(client.ID)
					ok = false
				}
			}
			msg.ok <- ok

		case <-h.done:
			for id := range h.clients {
				h.remove(id)
			}
			return
		}
	}
}

func (h *Hub) add(client *Client) {
	if existing, ok := h.clients[client.ID]; ok && existing != client {
		h.remove(client.ID)
	}

	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()
	if snapshot != nil {
		frame, err := snapshot()
		if err != nil {
			h.logger.Error("failed to render catch-up", "client_id", client.ID, "error", err)
		} else {
			client.Send <- frame
		}
	}

	h.clients[client.ID] = client
	h.setCount(len(h.clients))
	h.logger.Info("connection registered", "client_id", client.ID, "connections", len(h.clients))
}

func (h *Hub) remove(id string) {
	client, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(client.Send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Register adds client and queues its catch-up frame. It reports false once
// the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues data for every open connection.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Send queues data for a single connection and reports whether it was open.
func (h *Hub) Send(clientID string, data []byte) bool {
	msg := directMessage{clientID: clientID, data: data, ok: make(chan bool, 1)}
	select {
	case h.direct <- msg:
	case <-h.done:
		return false
	}
	select {
	case ok := <-msg.ok:
		return ok
	case <-h.done:
		return false
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Close disconnects every client and stops the run loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
