package services

import (
	"errors"
	"math"
	"testing"

	"edu-arena/internal/models"
)

func startedState(t *testing.T) models.GameState {
	t.Helper()
	s := newTestState(t)
	patch, err := StartGame(s)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return apply(s, patch)
}

func place(s models.GameState, teamID string, pos models.Position) models.GameState {
	s = s.Clone()
	team := s.Teams[teamID]
	team.Position = pos
	s.Teams[teamID] = team
	return s
}

func TestAttackHitsTeamInRange(t *testing.T) {
	s := startedState(t)
	s = place(s, "1", models.Position{X: 300, Y: 300})
	s = place(s, "2", models.Position{X: 300, Y: 300})

	intent := models.Attack("alice")
	intent.At = 1234
	patch, err := Attack(s, intent)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	s = apply(s, patch)

	target := s.Teams["2"]
	if target.HP != 120-20 {
		t.Fatalf("target hp = %d, want %d", target.HP, 100)
	}
	if target.IsDead {
		t.Fatalf("target should be alive")
	}
	if s.Teams["1"].HP != 200 {
		t.Fatalf("attacker must not damage itself")
	}
	if s.Teams["1"].LastAttackAt != 1234 {
		t.Fatalf("expected last attack timestamp recorded")
	}
}

func TestAttackRangeIsStrict(t *testing.T) {
	s := startedState(t)
	s = place(s, "1", models.Position{X: 0, Y: 0})

	s = place(s, "2", models.Position{X: 40, Y: 0})
	patch, err := Attack(s, models.Attack("alice"))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if got := apply(s, patch).Teams["2"].HP; got != 120 {
		t.Fatalf("target at exactly range must be missed, hp = %d", got)
	}

	s = place(s, "2", models.Position{X: 39.9, Y: 0})
	patch, err = Attack(s, models.Attack("alice"))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if got := apply(s, patch).Teams["2"].HP; got != 100 {
		t.Fatalf("target inside range must be hit, hp = %d", got)
	}
}

func TestAttackFloorsAtZeroAndDeathIsSticky(t *testing.T) {
	s := startedState(t)
	s = place(s, "1", models.Position{X: 500, Y: 500})
	s = place(s, "2", models.Position{X: 500, Y: 500})
	s = s.Clone()
	attacker := s.Teams["1"]
	attacker.Stats.Attack = 1000
	s.Teams["1"] = attacker

	patch, err := Attack(s, models.Attack("alice"))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	s = apply(s, patch)
	target := s.Teams["2"]
	if target.HP != 0 || !target.IsDead {
		t.Fatalf("expected hp 0 and dead, got %d dead=%v", target.HP, target.IsDead)
	}

	patch, err = Attack(s, models.Attack("alice"))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	s = apply(s, patch)
	if s.Teams["2"].HP != 0 || !s.Teams["2"].IsDead {
		t.Fatalf("dead team must stay at 0 and dead")
	}

	if _, err := Move(s, models.Move("bob", 1, 0)); !errors.Is(err, ErrTeamDead) {
		t.Fatalf("dead team must not move, got %v", err)
	}
	if _, err := Attack(s, models.Attack("bob")); !errors.Is(err, ErrTeamDead) {
		t.Fatalf("dead team must not attack, got %v", err)
	}
}

func TestAttackRequiresStartedCombatant(t *testing.T) {
	s := newTestState(t)
	if _, err := Attack(s, models.Attack("alice")); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	s = join(t, startedState(t), "Quincy", "1", models.RoleQuiz, models.Warrior, models.Position{})
	if _, err := Attack(s, models.Attack("quincy")); !errors.Is(err, ErrNotCombatant) {
		t.Fatalf("expected ErrNotCombatant, got %v", err)
	}
	if _, err := Move(s, models.Move("quincy", 1, 1)); !errors.Is(err, ErrNotCombatant) {
		t.Fatalf("expected ErrNotCombatant, got %v", err)
	}
}

func TestMoveClampsToArena(t *testing.T) {
	s := startedState(t)
	positions := []models.Position{{X: 0, Y: 0}, {X: 1000, Y: 1000}, {X: 5, Y: 995}, {X: 500, Y: 500}}
	deltas := []models.Position{{X: -1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}, {X: 0.5, Y: -0.25}}

	for _, start := range positions {
		for _, d := range deltas {
			state := place(s, "1", start)
			patch, err := Move(state, models.Move("alice", d.X, d.Y))
			if err != nil {
				t.Fatalf("move: %v", err)
			}
			got := patch.Teams["1"].Position
			if got.X < 0 || got.X > 1000 || got.Y < 0 || got.Y > 1000 {
				t.Fatalf("position %v escaped arena from %v with delta %v", got, start, d)
			}
		}
	}

	state := place(s, "1", models.Position{X: 500, Y: 500})
	patch, err := Move(state, models.Move("alice", 1, -0.5))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := patch.Teams["1"].Position; got != (models.Position{X: 510, Y: 495}) {
		t.Fatalf("unexpected position %v", got)
	}
}

func TestMoveRejectsInvalidDirection(t *testing.T) {
	s := place(startedState(t), "1", models.Position{X: 500, Y: 500})

	for _, d := range []models.Position{
		{X: math.NaN(), Y: 0},
		{X: 0, Y: math.NaN()},
		{X: math.Inf(1), Y: 0},
		{X: 0, Y: math.Inf(-1)},
		{X: 1.5, Y: 0},
		{X: 0, Y: -2},
	} {
		if _, err := Move(s, models.Move("alice", d.X, d.Y)); !errors.Is(err, ErrInvalidDirection) {
			t.Fatalf("direction %v: expected ErrInvalidDirection, got %v", d, err)
		}
	}
}
