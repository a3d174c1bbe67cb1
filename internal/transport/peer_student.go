package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"edu-arena/internal/protocol"
	"edu-arena/internal/rendezvous"

	"github.com/gorilla/websocket"
)

// PeerStudent holds the single connection a student keeps to its room host.
// The link is not re-established once it drops.
type PeerStudent struct {
	peerID string
	conn   *websocket.Conn

	handlers  handlerSet
	ready     chan struct{}
	readyOnce sync.Once
	writeMu   sync.Mutex

	lastAck   atomic.Int64
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
}

// DialPeer resolves the host of roomCode and connects to it. A positive
// heartbeat sends a HEARTBEAT at that interval for the life of the link.
func DialPeer(ctx context.Context, rv *rendezvous.Client, roomCode string, heartbeat time.Duration, logger *slog.Logger) (*PeerStudent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	peerID := rendezvous.PeerID(roomCode)

	url, err := rv.Resolve(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", peerID, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peerID, err)
	}

	s := &PeerStudent{
		peerID: peerID,
		conn:   conn,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With("peer_id", peerID),
	}
	s.logger.Info("connected to host", "url", url)

	go s.readLoop()
	if heartbeat > 0 {
		go s.heartbeatLoop(heartbeat)
	}
	return s, nil
}

func (s *PeerStudent) Publish(env protocol.Envelope) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	env.From = ""
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.shutdown()
		return fmt.Errorf("publish to %s: %w", s.peerID, err)
	}
	return nil
}

// OnReceive registers h. Messages from the host, the catch-up included, are
// held until the first handler is registered.
func (s *PeerStudent) OnReceive(h Handler) func() {
	unsubscribe := s.handlers.add(h)
	s.readyOnce.Do(func() { close(s.ready) })
	return unsubscribe
}

// Done is closed when the link to the host is gone.
func (s *PeerStudent) Done() <-chan struct{} {
	return s.done
}

// LastAck is the unix millisecond time of the most recent HEARTBEAT_ACK, or 0.
func (s *PeerStudent) LastAck() int64 {
	return s.lastAck.Load()
}

func (s *PeerStudent) Close() error {
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	s.shutdown()
	s.handlers.clear()
	return nil
}

func (s *PeerStudent) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *PeerStudent) readLoop() {
	defer func() {
		s.shutdown()
		s.logger.Info("link to host closed")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			s.logger.Debug("dropping message", "error", err)
			continue
		}

		if env.Type == protocol.MsgHeartbeatAck {
			if hb, err := protocol.DecodePayload[protocol.Heartbeat](env); err == nil {
				s.lastAck.Store(hb.At)
			}
			continue
		}

		select {
		case <-s.ready:
		case <-s.done:
			return
		}
		env.From = s.peerID
		s.handlers.dispatch(env)
	}
}

func (s *PeerStudent) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			env, err := protocol.NewEnvelope(protocol.MsgHeartbeat, protocol.Heartbeat{At: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			if err := s.Publish(env); err != nil {
				return
			}
		}
	}
}
