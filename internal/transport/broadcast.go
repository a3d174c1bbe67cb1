package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"edu-arena/internal/models"
	"edu-arena/internal/protocol"
	"edu-arena/internal/rendezvous"

	"github.com/google/uuid"
)

// Bus is the process-wide registry of named broadcast channels. Every tab or
// window of a same-device session opens the channel of its room on one Bus.
//
// A channel hands frames to all of its members in one order, and keeps the
// combination of every STATE_UPDATE it carried until its last member leaves,
// so a member opened mid-game starts from the state the others hold.
type Bus struct {
	mu       sync.Mutex
	channels map[string]map[string]*LocalBroadcast
	retained map[string]models.Patch
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		channels: make(map[string]map[string]*LocalBroadcast),
		retained: make(map[string]models.Patch),
		logger:   logger,
	}
}

// ChannelName is the broadcast channel a room is published on.
func ChannelName(roomCode string) string {
	return rendezvous.PeerPrefix + roomCode
}

// Open joins the channel of roomCode as a new member.
func (b *Bus) Open(roomCode string) *LocalBroadcast {
	lb := &LocalBroadcast{
		bus:    b,
		name:   ChannelName(roomCode),
		id:     uuid.NewString(),
		signal: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	lb.logger = b.logger.With("channel", lb.name, "member", lb.id)

	b.mu.Lock()
	if patch, ok := b.retained[lb.name]; ok {
		env, err := protocol.EncodeStateUpdate(patch, false)
		if err != nil {
			b.logger.Error("failed to encode retained state", "channel", lb.name, "error", err)
		} else {
			lb.initial = &env
		}
	}
	if b.channels[lb.name] == nil {
		b.channels[lb.name] = make(map[string]*LocalBroadcast)
	}
	b.channels[lb.name][lb.id] = lb
	b.mu.Unlock()

	go lb.run()
	return lb
}

// Members reports how many open members the named channel has.
func (b *Bus) Members(roomCode string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[ChannelName(roomCode)])
}

func (b *Bus) deliver(name, from string, env protocol.Envelope, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if env.Type == protocol.MsgStateUpdate {
		if update, err := protocol.DecodePayload[protocol.StateUpdate](env); err == nil {
			b.retained[name] = b.retained[name].Combine(update.Patch)
		}
	}
	for _, m := range b.channels[name] {
		m.enqueue(frame{from: from, data: data})
	}
}

func (b *Bus) leave(lb *LocalBroadcast) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels[lb.name], lb.id)
	if len(b.channels[lb.name]) == 0 {
		delete(b.channels, lb.name)
		delete(b.retained, lb.name)
	}
}

type frame struct {
	from string
	data []byte
}

// LocalBroadcast is one member of a Bus channel. Every member, the publisher
// included, receives every published message. The mailbox is unbounded so a
// handler that publishes never blocks the channel. Frames are held until the
// first handler is registered.
type LocalBroadcast struct {
	bus  *Bus
	name string
	id   string

	handlers  handlerSet
	initial   *protocol.Envelope
	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.Mutex
	mailbox []frame
	closed  bool
	signal  chan struct{}
	done    chan struct{}

	logger *slog.Logger
}

func (lb *LocalBroadcast) ID() string {
	return lb.id
}

// Initial returns the channel state retained when this member opened, as an
// incremental STATE_UPDATE. It reports false for the first member of a channel.
func (lb *LocalBroadcast) Initial() (protocol.Envelope, bool) {
	if lb.initial == nil {
		return protocol.Envelope{}, false
	}
	env := *lb.initial
	env.Payload = append([]byte(nil), lb.initial.Payload...)
	return env, true
}

func (lb *LocalBroadcast) Publish(env protocol.Envelope) error {
	lb.mu.Lock()
	closed := lb.closed
	lb.mu.Unlock()
	if closed {
		return ErrClosed
	}

	env.From = ""
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	lb.bus.deliver(lb.name, lb.id, env, data)
	return nil
}

func (lb *LocalBroadcast) OnReceive(h Handler) func() {
	unsubscribe := lb.handlers.add(h)
	lb.readyOnce.Do(func() { close(lb.ready) })
	return unsubscribe
}

func (lb *LocalBroadcast) Close() error {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return nil
	}
	lb.closed = true
	lb.mailbox = nil
	lb.mu.Unlock()

	lb.bus.leave(lb)
	close(lb.done)
	lb.handlers.clear()
	return nil
}

func (lb *LocalBroadcast) enqueue(f frame) {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return
	}
	lb.mailbox = append(lb.mailbox, f)
	lb.mu.Unlock()

	select {
	case lb.signal <- struct{}{}:
	default:
	}
}

func (lb *LocalBroadcast) run() {
	select {
	case <-lb.done:
		return
	case <-lb.ready:
	}

	for {
		select {
		case <-lb.done:
			return
		case <-lb.signal:
		}

		for {
			lb.mu.Lock()
			if lb.closed || len(lb.mailbox) == 0 {
				lb.mu.Unlock()
				break
			}
			f := lb.mailbox[0]
			lb.mailbox = lb.mailbox[1:]
			lb.mu.Unlock()

			env, err := protocol.Decode(f.data)
			if err != nil {
				if errors.Is(err, protocol.ErrUnknownType) {
					lb.logger.Debug("dropping unknown message", "type", env.Type)
				} else {
					lb.logger.Debug("dropping undecodable message", "error", err)
				}
				continue
			}
			env.From = f.from
			lb.handlers.dispatch(env)
		}
	}
}
