package rendezvous

import (
	"errors"
	"time"
)

// PeerPrefix namespaces room hosts inside the rendezvous service.
const PeerPrefix = "edu-arena-"

var (
	ErrIDTaken       = errors.New("peer id is already taken")
	ErrNotFound      = errors.New("peer not found")
	ErrTokenMismatch = errors.New("peer token does not match")
)

type Registration struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PeerID derives the rendezvous identifier of the host for roomCode.
func PeerID(roomCode string) string {
	return PeerPrefix + roomCode
}
