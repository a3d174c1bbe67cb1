package state

import (
	"log/slog"
	"slices"
	"sync"

	"edu-arena/internal/models"
)

const (
	EventStateChange = "stateChange"
	EventNotice      = "notice"
)

type Event struct {
	Name   string
	State  models.GameState
	Notice string
}

type Listener func(Event)

// Store owns the canonical GameState of one room. Presentation code reads it
// through GetState and Subscribe; mutations only arrive as patches.
type Store struct {
	mu    sync.RWMutex
	state models.GameState

	// emitMu keeps listener delivery in mutation order.
	emitMu    sync.Mutex
	listeners map[string]map[uint64]Listener
	nextID    uint64
	lmu       sync.Mutex
	closed    bool

	logger *slog.Logger
}

func NewStore(initial models.GameState, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:     initial.Clone(),
		listeners: make(map[string]map[uint64]Listener),
		logger:    logger,
	}
}

func (s *Store) GetState() models.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Apply merges patch into the canonical state and emits stateChange.
func (s *Store) Apply(patch models.Patch) models.GameState {
	next, _, _ := s.Update(func(models.GameState) (models.Patch, error) {
		return patch, nil
	})
	return next
}

// Update runs fn against the current state and merges the patch it returns,
// all under the store lock. When fn fails nothing is merged or emitted.
// Listeners must not call Apply or Update.
func (s *Store) Update(fn func(models.GameState) (models.Patch, error)) (models.GameState, models.Patch, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	patch, err := fn(s.state.Clone())
	if err != nil {
		s.mu.Unlock()
		return models.GameState{}, models.Patch{}, err
	}
	if patch.IsEmpty() {
		current := s.state.Clone()
		s.mu.Unlock()
		return current, patch, nil
	}
	s.state = Merge(s.state, patch)
	next := s.state.Clone()
	s.mu.Unlock()

	s.emit(Event{Name: EventStateChange, State: next})
	return next, patch, nil
}

// Notify emits a user-facing notice without touching state.
func (s *Store) Notify(message string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.emit(Event{Name: EventNotice, State: s.GetState(), Notice: message})
}

// Subscribe registers l for the named event. The returned function removes
// it; calling it more than once is harmless.
func (s *Store) Subscribe(event string, l Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	if s.listeners[event] == nil {
		s.listeners[event] = make(map[uint64]Listener)
	}
	s.listeners[event][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			delete(s.listeners[event], id)
		})
	}
}

// Close drops every listener; later mutations are still merged but not emitted.
func (s *Store) Close() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.closed = true
	s.listeners = make(map[string]map[uint64]Listener)
}

func (s *Store) emit(e Event) {
	s.lmu.Lock()
	ids := make([]uint64, 0, len(s.listeners[e.Name]))
	for id := range s.listeners[e.Name] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	targets := make([]Listener, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, s.listeners[e.Name][id])
	}
	s.lmu.Unlock()

	for _, l := range targets {
		s.deliver(l, e)
	}
}

func (s *Store) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state listener panicked", "event", e.Name, "panic", r)
		}
	}()
	l(e)
}
