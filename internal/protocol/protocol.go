package protocol

import (
	"encoding/json"

	"edu-arena/internal/models"
)

type MessageType string

const (
	MsgStateUpdate    MessageType = "STATE_UPDATE"
	MsgPlayerAction   MessageType = "PLAYER_ACTION"
	MsgPlayerJoin     MessageType = "PLAYER_JOIN"
	MsgHeartbeat      MessageType = "HEARTBEAT"
	MsgHeartbeatAck   MessageType = "HEARTBEAT_ACK"
	MsgActionRejected MessageType = "ACTION_REJECTED"
)

// Envelope is the wire frame shared by every transport.
type Envelope struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from,omitempty"` // set by the receiving transport, never trusted from the wire
	Payload json.RawMessage `json:"payload,omitempty"`
}

type StateUpdate struct {
	Patch models.Patch `json:"patch"`
	Full  bool         `json:"full"`
}

type Heartbeat struct {
	At int64 `json:"at" validate:"gte=0"`
}

// ActionRejected tells a student why the host refused its action.
type ActionRejected struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

func (t MessageType) Known() bool {
	switch t {
	case MsgStateUpdate, MsgPlayerAction, MsgPlayerJoin, MsgHeartbeat, MsgHeartbeatAck, MsgActionRejected:
		return true
	}
	return false
}
