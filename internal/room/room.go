package room

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"edu-arena/internal/models"
	"edu-arena/internal/protocol"
	"edu-arena/internal/services"
	"edu-arena/internal/state"
	"edu-arena/internal/transport"
)

var (
	ErrNotAuthority = errors.New("only the room authority can do this")
	ErrWrongRoom    = errors.New("join request is for another room")
	ErrClosed       = errors.New("room is closed")
)

// echoTimeout bounds how long a broadcast tab waits for its own update to
// come back through the channel.
const echoTimeout = 2 * time.Second

// Mode decides who resolves intents. It is fixed for the life of a room.
type Mode int

const (
	// ModeBroadcast: every tab on one device resolves its own intents and
	// shares the result over a local broadcast channel.
	ModeBroadcast Mode = iota
	// ModeHost: this participant is the authority for remote students.
	ModeHost
	// ModeStudent: intents are sent to the host and never applied locally.
	ModeStudent
)

func (m Mode) String() string {
	switch m {
	case ModeBroadcast:
		return "broadcast"
	case ModeHost:
		return "host"
	case ModeStudent:
		return "student"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) authority() bool {
	return m == ModeBroadcast || m == ModeHost
}

type Options struct {
	Mode      Mode
	Transport transport.Transport
	Quizzes   []models.Quiz
	Logger    *slog.Logger
	// Now stamps resolved intents; defaults to time.Now.
	Now func() time.Time
	// Spawn places newly created teams; defaults to a uniform random point in the arena.
	Spawn func() models.Position
}

// member is implemented by transports that echo a member's own messages back to it.
type member interface {
	ID() string
}

// initializer is implemented by transports that hand a late member the state
// the channel already carries.
type initializer interface {
	Initial() (protocol.Envelope, bool)
}

// snapshotter is implemented by transports that send new connections a
// catch-up frame.
type snapshotter interface {
	SetSnapshot(fn func() (protocol.Envelope, error))
}

// Room is one participant's view of a game session: its replica of the
// state, the transport it is synchronized over and the authority policy.
type Room struct {
	code      string
	mode      Mode
	store     *state.Store
	transport transport.Transport

	// mu serializes resolve, merge and publish so patches leave in the
	// order they were merged.
	mu     sync.Mutex
	closed bool

	// self is the member id of a broadcast tab; pending counts its own
	// updates that have not come back through the channel yet.
	self    string
	echoMu  sync.Mutex
	pending int
	echoed  chan struct{}

	unsubscribe func()
	now         func() time.Time
	spawn       func() models.Position
	logger      *slog.Logger
}

func New(code string, opts Options) (*Room, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, services.ErrMissingRoomCode
	}
	if opts.Transport == nil {
		return nil, errors.New("room transport is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Spawn == nil {
		opts.Spawn = RandomSpawn
	}

	initial := models.NewGameState(code, nil)
	if opts.Mode.authority() {
		initial = models.NewGameState(code, opts.Quizzes)
	}

	logger := opts.Logger.With("room", code, "mode", opts.Mode.String())
	r := &Room{
		code:      code,
		mode:      opts.Mode,
		store:     state.NewStore(initial, logger),
		transport: opts.Transport,
		now:       opts.Now,
		spawn:     opts.Spawn,
		echoed:    make(chan struct{}, 1),
		logger:    logger,
	}

	if opts.Mode == ModeBroadcast {
		if m, ok := opts.Transport.(member); ok {
			r.self = m.ID()
		}
		if in, ok := opts.Transport.(initializer); ok {
			if env, ok := in.Initial(); ok {
				update, err := protocol.DecodePayload[protocol.StateUpdate](env)
				if err != nil {
					return nil, fmt.Errorf("decode channel state: %w", err)
				}
				r.store.Apply(update.Patch)
			}
		}
	}

	if s, ok := opts.Transport.(snapshotter); ok && opts.Mode == ModeHost {
		s.SetSnapshot(func() (protocol.Envelope, error) {
			return protocol.EncodeStateUpdate(models.FullPatch(r.store.GetState()), true)
		})
	}
	r.unsubscribe = opts.Transport.OnReceive(r.handle)
	return r, nil
}

func RandomSpawn() models.Position {
	return models.Position{
		X: models.ArenaMin + rand.Float64()*(models.ArenaMax-models.ArenaMin),
		Y: models.ArenaMin + rand.Float64()*(models.ArenaMax-models.ArenaMin),
	}
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Mode() Mode {
	return r.mode
}

func (r *Room) Store() *state.Store {
	return r.store
}

func (r *Room) State() models.GameState {
	return r.store.GetState()
}

// Subscribe forwards to the room's store.
func (r *Room) Subscribe(event string, l state.Listener) func() {
	return r.store.Subscribe(event, l)
}

// Join announces a participant and returns its player id. A missing name or
// room code is a user-visible error and nothing is sent.
func (r *Room) Join(req models.JoinRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RoomCode = strings.TrimSpace(req.RoomCode)
	if req.Name == "" {
		return "", services.ErrMissingName
	}
	if req.RoomCode == "" {
		return "", services.ErrMissingRoomCode
	}
	if req.RoomCode != r.code {
		return "", ErrWrongRoom
	}
	id := models.PlayerID(req.Name)

	if r.mode == ModeStudent {
		env, err := protocol.EncodeJoin(req)
		if err != nil {
			return "", err
		}
		return id, r.send(env)
	}

	spawn := r.spawn()
	err := r.resolve(func(s models.GameState) (models.Patch, error) {
		return services.JoinPlayer(s, req, spawn)
	})
	if err != nil {
		r.store.Notify(err.Error())
		return "", err
	}
	return id, nil
}

// Dispatch submits a user intent. Authorities resolve and publish it; a
// student forwards it to the host and waits for the resulting STATE_UPDATE.
func (r *Room) Dispatch(intent models.Intent) error {
	if err := protocol.ValidateIntent(intent); err != nil {
		r.store.Notify(err.Error())
		return err
	}
	if r.mode == ModeStudent {
		intent.At = 0
		env, err := protocol.EncodeAction(intent)
		if err != nil {
			return err
		}
		return r.send(env)
	}

	if err := r.resolveIntent(intent); err != nil {
		r.store.Notify(err.Error())
		return err
	}
	return nil
}

func (r *Room) StartGame() error {
	return r.control(services.StartGame)
}

func (r *Room) SetPhase(phase models.Phase) error {
	return r.control(func(s models.GameState) (models.Patch, error) {
		return services.SetPhase(s, phase)
	})
}

func (r *Room) AddQuiz(q models.Quiz) error {
	return r.control(func(s models.GameState) (models.Patch, error) {
		return services.AddQuiz(s, q)
	})
}

func (r *Room) control(fn func(models.GameState) (models.Patch, error)) error {
	if !r.mode.authority() {
		return ErrNotAuthority
	}
	if err := r.resolve(fn); err != nil {
		r.store.Notify(err.Error())
		return err
	}
	return nil
}

func (r *Room) resolveIntent(intent models.Intent) error {
	intent.At = r.now().UnixMilli()
	return r.resolve(func(s models.GameState) (models.Patch, error) {
		return services.ApplyIntent(s, intent)
	})
}

// resolve computes a patch against the canonical state, merges it and
// publishes it, all under r.mu. A broadcast tab merges its own update again
// when it comes back, and resolve returns only once it has.
func (r *Room) resolve(fn func(models.GameState) (models.Patch, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	_, patch, err := r.store.Update(fn)
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	env, err := protocol.EncodeStateUpdate(patch, false)
	if err != nil {
		return err
	}
	r.expectEcho()
	if err := r.transport.Publish(env); err != nil {
		r.echoDone()
		r.logger.Warn("failed to publish state update", "error", err)
		return nil
	}
	r.awaitEchoes()
	return nil
}

func (r *Room) expectEcho() {
	if r.self == "" {
		return
	}
	r.echoMu.Lock()
	r.pending++
	r.echoMu.Unlock()
}

func (r *Room) echoDone() {
	if r.self == "" {
		return
	}
	r.echoMu.Lock()
	if r.pending > 0 {
		r.pending--
	}
	r.echoMu.Unlock()
	select {
	case r.echoed <- struct{}{}:
	default:
	}
}

func (r *Room) awaitEchoes() {
	if r.self == "" {
		return
	}
	timer := time.NewTimer(echoTimeout)
	defer timer.Stop()
	for {
		r.echoMu.Lock()
		n := r.pending
		r.echoMu.Unlock()
		if n == 0 {
			return
		}
		select {
		case <-r.echoed:
		case <-timer.C:
			r.echoMu.Lock()
			r.pending = 0
			r.echoMu.Unlock()
			r.logger.Warn("own state update did not come back", "pending", n)
			return
		}
	}
}

func (r *Room) send(env protocol.Envelope) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return r.transport.Publish(env)
}

func (r *Room) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgStateUpdate:
		if r.mode == ModeHost {
			return
		}
		own := r.self != "" && env.From == r.self
		update, err := protocol.DecodePayload[protocol.StateUpdate](env)
		if err != nil {
			r.logger.Debug("dropping state update", "error", err)
			if own {
				r.echoDone()
			}
			return
		}
		r.store.Apply(update.Patch)
		if own {
			r.echoDone()
		}

	case protocol.MsgPlayerAction:
		if r.mode != ModeHost {
			return
		}
		intent, err := protocol.DecodePayload[models.Intent](env)
		if err != nil {
			r.logger.Debug("dropping player action", "from", env.From, "error", err)
			return
		}
		if err := r.resolveIntent(intent); err != nil {
			r.reject(env.From, intent.PlayerID, string(intent.Kind), err)
		}

	case protocol.MsgPlayerJoin:
		if r.mode != ModeHost {
			return
		}
		req, err := protocol.DecodePayload[models.JoinRequest](env)
		if err != nil {
			r.logger.Debug("dropping join", "from", env.From, "error", err)
			return
		}
		if req.RoomCode != r.code {
			r.reject(env.From, models.PlayerID(req.Name), string(protocol.MsgPlayerJoin), ErrWrongRoom)
			return
		}
		spawn := r.spawn()
		err = r.resolve(func(s models.GameState) (models.Patch, error) {
			return services.JoinPlayer(s, req, spawn)
		})
		if err != nil {
			r.reject(env.From, models.PlayerID(req.Name), string(protocol.MsgPlayerJoin), err)
			return
		}
		r.logger.Info("player joined", "player", req.Name, "team", req.TeamID, "role", req.Role)

	case protocol.MsgActionRejected:
		if r.mode != ModeStudent {
			return
		}
		rejected, err := protocol.DecodePayload[protocol.ActionRejected](env)
		if err != nil {
			r.logger.Debug("dropping rejection", "error", err)
			return
		}
		r.store.Notify(rejected.Reason)

	default:
		r.logger.Debug("ignoring message", "type", env.Type)
	}
}

func (r *Room) reject(to, playerID, kind string, cause error) {
	r.logger.Info("action rejected", "from", to, "player", playerID, "kind", kind, "reason", cause)
	replier, ok := r.transport.(transport.Replier)
	if !ok || to == "" {
		return
	}
	env, err := protocol.NewEnvelope(protocol.MsgActionRejected, protocol.ActionRejected{
		PlayerID: playerID,
		Kind:     kind,
		Reason:   cause.Error(),
	})
	if err != nil {
		return
	}
	if err := replier.Reply(to, env); err != nil {
		r.logger.Debug("failed to deliver rejection", "to", to, "error", err)
	}
}

// Close detaches the room from its transport and closes both.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.unsubscribe()
	err := r.transport.Close()
	r.store.Close()
	return err
}
