package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"edu-arena/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrEmptyPayload = errors.New("empty payload")
)

var validate = validator.New()

func Encode(t MessageType, payload any) ([]byte, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	if !t.Known() {
		return Envelope{}, fmt.Errorf("encode %q: %w", t, ErrUnknownType)
	}
	if payload == nil {
		return Envelope{}, fmt.Errorf("encode %q: %w", t, ErrEmptyPayload)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %q: %w", t, err)
	}
	return Envelope{Type: t, Payload: pb}, nil
}

// Decode parses a frame. Frames of unknown type return ErrUnknownType so the
// caller can drop them.
func Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	env.From = ""
	if !env.Type.Known() {
		return env, fmt.Errorf("decode %q: %w", env.Type, ErrUnknownType)
	}
	return env, nil
}

// DecodePayload unmarshals and validates the payload of env.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("payload for %q: %w", env.Type, ErrEmptyPayload)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("payload for %q: %w", env.Type, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("payload for %q: %w", env.Type, err)
	}
	return out, nil
}

func EncodeStateUpdate(patch models.Patch, full bool) (Envelope, error) {
	return NewEnvelope(MsgStateUpdate, StateUpdate{Patch: patch, Full: full})
}

// ValidateIntent checks an intent against the shape rules of its kind.
func ValidateIntent(intent models.Intent) error {
	if err := validate.Struct(intent); err != nil {
		return fmt.Errorf("invalid %s intent: %w", intent.Kind, err)
	}
	return nil
}

func EncodeAction(intent models.Intent) (Envelope, error) {
	if err := ValidateIntent(intent); err != nil {
		return Envelope{}, fmt.Errorf("encode action: %w", err)
	}
	return NewEnvelope(MsgPlayerAction, intent)
}

func EncodeJoin(req models.JoinRequest) (Envelope, error) {
	if err := validate.Struct(req); err != nil {
		return Envelope{}, fmt.Errorf("encode join: %w", err)
	}
	return NewEnvelope(MsgPlayerJoin, req)
}
