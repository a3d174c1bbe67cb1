package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"edu-arena/internal/hub"
	"edu-arena/internal/protocol"
	"edu-arena/internal/rendezvous"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

// PeerHost is the authority end of the peer overlay. It claims the room's
// rendezvous id and serves one websocket per connected student.
type PeerHost struct {
	roomCode string
	peerID   string

	hub      *hub.Hub
	handlers handlerSet
	upgrader websocket.Upgrader
	router   *gin.Engine

	rendezvous *rendezvous.Client
	mu         sync.Mutex
	token      string
	closed     bool

	logger *slog.Logger
}

func NewPeerHost(roomCode string, rv *rendezvous.Client, logger *slog.Logger) *PeerHost {
	if logger == nil {
		logger = slog.Default()
	}
	peerID := rendezvous.PeerID(roomCode)
	logger = logger.With("peer_id", peerID)

	h := &PeerHost{
		roomCode:   roomCode,
		peerID:     peerID,
		hub:        hub.New(peerID, logger),
		rendezvous: rv,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		router: gin.New(),
		logger: logger,
	}

	h.router.Use(gin.Recovery())
	h.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "peer": h.peerID, "connections": h.hub.Count()})
	})
	h.router.GET("/peer", h.handleWebSocket)

	go h.hub.Run()
	return h
}

// Handler serves the peer websocket endpoint at /peer.
func (h *PeerHost) Handler() http.Handler {
	return h.router
}

func (h *PeerHost) PeerID() string {
	return h.peerID
}

// Register claims the room's peer id, advertising url as the address students
// dial. A taken id is returned as rendezvous.ErrIDTaken and is fatal for the host.
func (h *PeerHost) Register(ctx context.Context, url string) error {
	token, err := h.rendezvous.Register(ctx, h.peerID, url)
	if err != nil {
		return fmt.Errorf("register %s: %w", h.peerID, err)
	}
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
	h.logger.Info("peer id registered", "url", url)
	return nil
}

// SetSnapshot installs the source of the full-state catch-up each new
// connection receives before any later broadcast.
func (h *PeerHost) SetSnapshot(fn func() (protocol.Envelope, error)) {
	h.hub.SetSnapshot(func() ([]byte, error) {
		env, err := fn()
		if err != nil {
			return nil, err
		}
		return json.Marshal(env)
	})
}

// Publish sends env to every open connection.
func (h *PeerHost) Publish(env protocol.Envelope) error {
	if h.isClosed() {
		return ErrClosed
	}
	env.From = ""
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.hub.Broadcast(data)
	return nil
}

// Reply sends env to the single connection to.
func (h *PeerHost) Reply(to string, env protocol.Envelope) error {
	if h.isClosed() {
		return ErrClosed
	}
	env.From = ""
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if !h.hub.Send(to, data) {
		return fmt.Errorf("reply to %s: %w", to, ErrClosed)
	}
	return nil
}

func (h *PeerHost) OnReceive(handler Handler) func() {
	return h.handlers.add(handler)
}

func (h *PeerHost) Connections() int {
	return h.hub.Count()
}

// Close disconnects every student and releases the peer id.
func (h *PeerHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	token := h.token
	h.mu.Unlock()

	h.hub.Close()
	h.handlers.clear()

	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.rendezvous.Release(ctx, h.peerID, token); err != nil && !errors.Is(err, rendezvous.ErrNotFound) {
		return fmt.Errorf("release %s: %w", h.peerID, err)
	}
	h.logger.Info("peer id released")
	return nil
}

func (h *PeerHost) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *PeerHost) handleWebSocket(c *gin.Context) {
	if h.isClosed() {
		c.JSON(503, gin.H{"error": "host closed"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := hub.NewClient()
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *PeerHost) readPump(conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.Decode(data)
		if err != nil {
			h.logger.Debug("dropping message", "client_id", client.ID, "error", err)
			continue
		}

		if env.Type == protocol.MsgHeartbeat {
			ack, err := protocol.Encode(protocol.MsgHeartbeatAck, protocol.Heartbeat{At: time.Now().UnixMilli()})
			if err == nil {
				h.hub.Send(client.ID, ack)
			}
			continue
		}

		env.From = client.ID
		h.handlers.dispatch(env)
	}
}

func (h *PeerHost) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("websocket write error", "client_id", client.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
