package services

import (
	"math"

	"edu-arena/internal/models"
)

// MoveSpeed is the arena distance covered by one full-strength movement step.
const MoveSpeed = 10.0

// Attack damages every other live team strictly within the attacker's range.
func Attack(state models.GameState, intent models.Intent) (models.Patch, error) {
	attacker, err := combatTeam(state, intent.PlayerID)
	if err != nil {
		return models.Patch{}, err
	}

	teams := copyTeams(state.Teams)
	reach := float64(attacker.Stats.Range)
	for id, target := range teams {
		if id == attacker.ID || target.IsDead {
			continue
		}
		if distance(attacker.Position, target.Position) >= reach {
			continue
		}
		target.HP -= attacker.Stats.Attack
		if target.HP <= 0 {
			target.HP = 0
			target.IsDead = true
		}
		teams[id] = target
	}

	attacker.LastAttackAt = intent.At
	teams[attacker.ID] = attacker
	return models.Patch{Teams: teams}, nil
}

func Move(state models.GameState, intent models.Intent) (models.Patch, error) {
	if !validAxis(intent.X) || !validAxis(intent.Y) {
		return models.Patch{}, ErrInvalidDirection
	}
	team, err := combatTeam(state, intent.PlayerID)
	if err != nil {
		return models.Patch{}, err
	}

	team.Position = clampPosition(models.Position{
		X: team.Position.X + intent.X*MoveSpeed,
		Y: team.Position.Y + intent.Y*MoveSpeed,
	})

	teams := copyTeams(state.Teams)
	teams[team.ID] = team
	return models.Patch{Teams: teams}, nil
}

func combatTeam(state models.GameState, playerID string) (models.Team, error) {
	player, team, err := playerAndTeam(state, playerID)
	if err != nil {
		return models.Team{}, err
	}
	if player.Role != models.RoleCombat {
		return models.Team{}, ErrNotCombatant
	}
	if !state.IsStarted {
		return models.Team{}, ErrNotStarted
	}
	if team.IsDead {
		return models.Team{}, ErrTeamDead
	}
	return team, nil
}

func distance(a, b models.Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// validAxis rejects NaN and infinities along with anything outside [-1, 1].
func validAxis(v float64) bool {
	return v >= -1 && v <= 1
}

func clampPosition(p models.Position) models.Position {
	return models.Position{X: clamp(p.X), Y: clamp(p.Y)}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return models.ArenaMin
	}
	return math.Max(models.ArenaMin, math.Min(models.ArenaMax, v))
}
