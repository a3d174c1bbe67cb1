package models

import (
	"strings"
)

type Role string

const (
	RoleQuiz    Role = "QUIZ"
	RoleSupport Role = "SUPPORT"
	RoleCombat  Role = "COMBAT"
)

type ClassType string

const (
	Warrior ClassType = "WARRIOR"
	Mage    ClassType = "MAGE"
	Archer  ClassType = "ARCHER"
	Rogue   ClassType = "ROGUE"
)

type Phase string

const (
	PhaseQuiz   Phase = "QUIZ"
	PhaseBattle Phase = "BATTLE"
)

const (
	ArenaMin = 0.0
	ArenaMax = 1000.0
)

// TeamIDs is the fixed set of classroom groups a player can join.
var TeamIDs = []string{"1", "2", "3", "4", "5", "6"}

type CharacterStats struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Dexterity    int `json:"dexterity"`
	Attack       int `json:"attack"`
	Defense      int `json:"defense"`
	Range        int `json:"range"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Effect struct {
	Name      string `json:"name"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeamID    string    `json:"teamId"`
	Role      Role      `json:"role"`
	ClassType ClassType `json:"classType"`
	Points    int       `json:"points"`
}

type Team struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Points       int            `json:"points"`
	Stats        CharacterStats `json:"stats"`
	HP           int            `json:"hp"`
	MaxHP        int            `json:"maxHp"`
	Position     Position       `json:"position"`
	IsDead       bool           `json:"isDead"`
	ClassType    ClassType      `json:"classType"`
	Effects      []Effect       `json:"effects"`
	LastAttackAt int64          `json:"lastAttackAt"`
}

type Quiz struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type GameState struct {
	RoomCode         string            `json:"roomCode"`
	IsStarted        bool              `json:"isStarted"`
	Players          map[string]Player `json:"players"`
	Teams            map[string]Team   `json:"teams"`
	Quizzes          []Quiz            `json:"quizzes"`
	CurrentQuizIndex int               `json:"currentQuizIndex"`
	Phase            Phase             `json:"phase"`
}

// Baseline returns the starting stats and hit points of a class.
func Baseline(class ClassType) (CharacterStats, int, bool) {
	switch class {
	case Warrior:
		return CharacterStats{Strength: 20, Intelligence: 5, Dexterity: 10, Attack: 20, Defense: 15, Range: 40}, 200, true
	case Mage:
		return CharacterStats{Strength: 5, Intelligence: 20, Dexterity: 8, Attack: 30, Defense: 5, Range: 150}, 120, true
	case Archer:
		return CharacterStats{Strength: 8, Intelligence: 8, Dexterity: 20, Attack: 18, Defense: 8, Range: 200}, 140, true
	case Rogue:
		return CharacterStats{Strength: 10, Intelligence: 8, Dexterity: 18, Attack: 25, Defense: 10, Range: 60}, 160, true
	}
	return CharacterStats{}, 0, false
}

func (r Role) Valid() bool {
	return r == RoleQuiz || r == RoleSupport || r == RoleCombat
}

func (p Phase) Valid() bool {
	return p == PhaseQuiz || p == PhaseBattle
}

func ValidTeamID(id string) bool {
	for _, t := range TeamIDs {
		if t == id {
			return true
		}
	}
	return false
}

// PlayerID derives the stable player identifier from a display name.
func PlayerID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NewGameState(roomCode string, quizzes []Quiz) GameState {
	q := make([]Quiz, len(quizzes))
	copy(q, quizzes)
	return GameState{
		RoomCode: roomCode,
		Players:  make(map[string]Player),
		Teams:    make(map[string]Team),
		Quizzes:  q,
		Phase:    PhaseQuiz,
	}
}

// Clone returns a deep copy so replicas never share maps or slices with the source.
func (s GameState) Clone() GameState {
	out := s
	out.Players = clonePlayers(s.Players)
	out.Teams = cloneTeams(s.Teams)
	out.Quizzes = cloneQuizzes(s.Quizzes)
	return out
}

func (s GameState) Team(id string) (Team, bool) {
	t, ok := s.Teams[id]
	return t, ok
}

func (s GameState) Player(id string) (Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

func (t Team) Clone() Team {
	if t.Effects != nil {
		effects := make([]Effect, len(t.Effects))
		copy(effects, t.Effects)
		t.Effects = effects
	}
	return t
}

func clonePlayers(in map[string]Player) map[string]Player {
	if in == nil {
		return nil
	}
	out := make(map[string]Player, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTeams(in map[string]Team) map[string]Team {
	if in == nil {
		return nil
	}
	out := make(map[string]Team, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

func cloneQuizzes(in []Quiz) []Quiz {
	if in == nil {
		return nil
	}
	out := make([]Quiz, len(in))
	for i, q := range in {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		out[i] = q
	}
	return out
}
