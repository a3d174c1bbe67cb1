package protocol

import (
	"errors"
	"math"
	"testing"

	"edu-arena/internal/models"
)

func TestActionRoundTrip(t *testing.T) {
	env, err := EncodeAction(models.Move("alice", 0.5, -1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(env.Type, models.Move("alice", 0.5, -1))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	decoded, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != MsgPlayerAction {
		t.Fatalf("type = %q, want %q", decoded.Type, MsgPlayerAction)
	}
	intent, err := DecodePayload[models.Intent](decoded)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if intent.Kind != models.IntentMove || intent.X != 0.5 || intent.Y != -1 || intent.PlayerID != "alice" {
		t.Fatalf("unexpected intent %#v", intent)
	}
}

func TestDecodeUnknownTypeIsDroppable(t *testing.T) {
	env, err := Decode([]byte(`{"type":"TELEPORT","payload":{}}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if env.Type != "TELEPORT" {
		t.Fatalf("expected type to be reported, got %q", env.Type)
	}

	if _, err := Decode(nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected error for garbage frame")
	}
}

func TestDecodeIgnoresWireSender(t *testing.T) {
	env, err := Decode([]byte(`{"type":"HEARTBEAT","from":"spoofed","payload":{"at":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.From != "" {
		t.Fatalf("from must be assigned by the transport, got %q", env.From)
	}
}

func TestDecodePayloadValidates(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown kind", `{"type":"PLAYER_ACTION","payload":{"kind":"FLY","playerId":"a"}}`},
		{"missing player", `{"type":"PLAYER_ACTION","payload":{"kind":"ATTACK"}}`},
		{"move out of range", `{"type":"PLAYER_ACTION","payload":{"kind":"MOVE","playerId":"a","x":3}}`},
		{"upgrade without stat", `{"type":"PLAYER_ACTION","payload":{"kind":"UPGRADE_STAT","playerId":"a"}}`},
		{"empty payload", `{"type":"PLAYER_ACTION"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, err := DecodePayload[models.Intent](env); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateIntentRejectsNonFiniteMove(t *testing.T) {
	for _, intent := range []models.Intent{
		models.Move("alice", math.NaN(), 0),
		models.Move("alice", 0, math.Inf(1)),
		models.Move("alice", -1.01, 0),
	} {
		if err := ValidateIntent(intent); err == nil {
			t.Fatalf("expected %+v to be rejected", intent)
		}
	}
	if err := ValidateIntent(models.Move("alice", 1, -1)); err != nil {
		t.Fatalf("edge direction should be valid: %v", err)
	}
}

func TestJoinValidation(t *testing.T) {
	if _, err := EncodeJoin(models.JoinRequest{RoomCode: "ABCDE", TeamID: "1", Role: models.RoleCombat, ClassType: models.Warrior}); err == nil {
		t.Fatalf("expected missing name to fail")
	}
	if _, err := EncodeJoin(models.JoinRequest{RoomCode: "ABCDE", Name: "Alice", TeamID: "1", Role: "PILOT", ClassType: models.Warrior}); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	env, err := EncodeJoin(models.JoinRequest{RoomCode: "ABCDE", Name: "Alice", TeamID: "1", Role: models.RoleCombat, ClassType: models.Warrior})
	if err != nil {
		t.Fatalf("encode join: %v", err)
	}
	req, err := DecodePayload[models.JoinRequest](env)
	if err != nil || req.Name != "Alice" {
		t.Fatalf("decode join: %v %#v", err, req)
	}
}

func TestStateUpdateKeepsPresence(t *testing.T) {
	started := true
	env, err := EncodeStateUpdate(models.Patch{IsStarted: &started, Teams: map[string]models.Team{}}, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	update, err := DecodePayload[StateUpdate](env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if update.Patch.IsStarted == nil || !*update.Patch.IsStarted {
		t.Fatalf("isStarted lost")
	}
	if update.Patch.Teams == nil {
		t.Fatalf("present empty teams must stay present")
	}
	if update.Patch.Players != nil || update.Patch.Quizzes != nil || update.Patch.Phase != nil {
		t.Fatalf("absent keys must stay absent: %#v", update.Patch)
	}
}
