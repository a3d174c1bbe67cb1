package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
)

const (
	CodeLength = 5
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Manager holds the rooms a process participates in, keyed by code.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// Create builds a room for code with opts and tracks it.
func (m *Manager) Create(code string, opts Options) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[code]; exists {
		return nil, fmt.Errorf("%s: %w", code, ErrRoomExists)
	}
	r, err := New(code, opts)
	if err != nil {
		return nil, err
	}
	m.rooms[r.Code()] = r
	return r, nil
}

func (m *Manager) Get(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", code, ErrRoomNotFound)
	}
	return r, nil
}

// Codes lists the tracked room codes in order.
func (m *Manager) Codes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Remove closes the room and stops tracking it.
func (m *Manager) Remove(code string) error {
	m.mu.Lock()
	r, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", code, ErrRoomNotFound)
	}
	return r.Close()
}

// Close closes every room.
func (m *Manager) Close() error {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var errs []error
	for _, r := range rooms {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GenerateCode returns a random room code of uppercase letters and digits.
func GenerateCode() string {
	b := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}

func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
