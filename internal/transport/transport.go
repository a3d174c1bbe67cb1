package transport

import (
	"bytes"
	"errors"
	"slices"
	"sync"

	"edu-arena/internal/protocol"
)

var ErrClosed = errors.New("transport closed")

// Handler receives one decoded message. From identifies the sending member
// or connection as seen by the receiving transport.
type Handler func(protocol.Envelope)

// Transport moves envelopes between the participants of one room. Delivery
// is best-effort and FIFO per sender.
type Transport interface {
	Publish(env protocol.Envelope) error
	OnReceive(h Handler) (unsubscribe func())
	Close() error
}

// Replier is implemented by transports that can address a single sender.
type Replier interface {
	Reply(to string, env protocol.Envelope) error
}

type handlerSet struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler
}

func (s *handlerSet) add(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[uint64]Handler)
	}
	s.nextID++
	id := s.nextID
	s.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *handlerSet) clear() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}

// dispatch calls every handler in subscription order with its own copy of
// the payload.
func (s *handlerSet) dispatch(env protocol.Envelope) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[id])
	}
	s.mu.RUnlock()

	for _, h := range hs {
		c := env
		c.Payload = bytes.Clone(env.Payload)
		h(c)
	}
}
