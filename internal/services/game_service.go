package services

import (
	"strings"

	"edu-arena/internal/models"
)

const (
	CorrectAnswerPoints   = 6
	IncorrectAnswerPoints = 4
	UpgradeCost           = 10
	UpgradeIncrement      = 5
)

// The adapters below are pure: they read the given state and return a patch
// holding complete replacement sub-mappings, never mutating their input.

// JoinPlayer registers a player under its team, creating the team on first
// join. A COMBAT member decides the team's class while the game has not started.
func JoinPlayer(state models.GameState, req models.JoinRequest, spawn models.Position) (models.Patch, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Patch{}, ErrMissingName
	}
	if strings.TrimSpace(req.RoomCode) == "" {
		return models.Patch{}, ErrMissingRoomCode
	}
	if !models.ValidTeamID(req.TeamID) {
		return models.Patch{}, ErrInvalidTeam
	}
	if !req.Role.Valid() {
		return models.Patch{}, ErrInvalidRole
	}
	stats, hp, ok := models.Baseline(req.ClassType)
	if !ok {
		return models.Patch{}, ErrInvalidClass
	}

	id := models.PlayerID(name)
	if existing, ok := state.Players[id]; ok {
		if existing.TeamID == req.TeamID && existing.Role == req.Role && existing.ClassType == req.ClassType {
			return models.Patch{}, nil
		}
		return models.Patch{}, ErrRoleLocked
	}

	players := copyPlayers(state.Players)
	players[id] = models.Player{
		ID:        id,
		Name:      name,
		TeamID:    req.TeamID,
		Role:      req.Role,
		ClassType: req.ClassType,
	}
	patch := models.Patch{Players: players}

	team, exists := state.Teams[req.TeamID]
	switch {
	case !exists:
		team = models.Team{
			ID:        req.TeamID,
			Name:      "Team " + req.TeamID,
			Stats:     stats,
			HP:        hp,
			MaxHP:     hp,
			Position:  clampPosition(spawn),
			ClassType: req.ClassType,
			Effects:   []models.Effect{},
		}
	case req.Role == models.RoleCombat && !state.IsStarted && !hasCombatant(state, req.TeamID):
		team = rebase(team, req.ClassType)
	default:
		return patch, nil
	}

	teams := copyTeams(state.Teams)
	teams[team.ID] = team
	patch.Teams = teams
	return patch, nil
}

func StartGame(state models.GameState) (models.Patch, error) {
	if state.IsStarted {
		return models.Patch{}, ErrAlreadyStarted
	}
	started := true
	return models.Patch{IsStarted: &started}, nil
}

func SetPhase(state models.GameState, phase models.Phase) (models.Patch, error) {
	if !phase.Valid() {
		return models.Patch{}, ErrInvalidPhase
	}
	return models.Patch{Phase: &phase}, nil
}

func AddQuiz(state models.GameState, q models.Quiz) (models.Patch, error) {
	if err := validateQuiz(q); err != nil {
		return models.Patch{}, err
	}
	quizzes := make([]models.Quiz, 0, len(state.Quizzes)+1)
	quizzes = append(quizzes, state.Quizzes...)
	quizzes = append(quizzes, q)
	return models.Patch{Quizzes: quizzes}, nil
}

// CurrentQuiz returns the quiz players are answering. Nothing advances
// CurrentQuizIndex yet, so this is always the first quiz in the list.
func CurrentQuiz(state models.GameState) (models.Quiz, bool) {
	if len(state.Quizzes) == 0 {
		return models.Quiz{}, false
	}
	return state.Quizzes[0], true
}

func AnswerQuiz(state models.GameState, intent models.Intent) (models.Patch, error) {
	player, team, err := playerAndTeam(state, intent.PlayerID)
	if err != nil {
		return models.Patch{}, err
	}

	points := IncorrectAnswerPoints
	if intent.Correct {
		points = CorrectAnswerPoints
	}
	player.Points += points
	team.Points += points

	players := copyPlayers(state.Players)
	players[player.ID] = player
	teams := copyTeams(state.Teams)
	teams[team.ID] = team
	return models.Patch{Players: players, Teams: teams}, nil
}

func UpgradeStat(state models.GameState, intent models.Intent) (models.Patch, error) {
	_, team, err := playerAndTeam(state, intent.PlayerID)
	if err != nil {
		return models.Patch{}, err
	}
	field := statField(&team.Stats, intent.Stat)
	if field == nil {
		return models.Patch{}, ErrUnknownStat
	}
	if team.Points < UpgradeCost {
		return models.Patch{}, ErrInsufficientPoints
	}

	team.Points -= UpgradeCost
	*field += UpgradeIncrement

	teams := copyTeams(state.Teams)
	teams[team.ID] = team
	return models.Patch{Teams: teams}, nil
}

// ApplyIntent resolves an intent into the patch it produces.
func ApplyIntent(state models.GameState, intent models.Intent) (models.Patch, error) {
	switch intent.Kind {
	case models.IntentMove:
		return Move(state, intent)
	case models.IntentAttack:
		return Attack(state, intent)
	case models.IntentAnswerQuiz:
		return AnswerQuiz(state, intent)
	case models.IntentUpgradeStat:
		return UpgradeStat(state, intent)
	}
	return models.Patch{}, ErrUnknownIntent
}

func playerAndTeam(state models.GameState, playerID string) (models.Player, models.Team, error) {
	player, ok := state.Players[playerID]
	if !ok {
		return models.Player{}, models.Team{}, ErrPlayerNotFound
	}
	team, ok := state.Teams[player.TeamID]
	if !ok {
		return models.Player{}, models.Team{}, ErrTeamNotFound
	}
	return player, team.Clone(), nil
}

func hasCombatant(state models.GameState, teamID string) bool {
	for _, p := range state.Players {
		if p.TeamID == teamID && p.Role == models.RoleCombat {
			return true
		}
	}
	return false
}

// rebase switches a team to another class, keeping upgrades already bought.
func rebase(team models.Team, class models.ClassType) models.Team {
	oldStats, oldHP, _ := models.Baseline(team.ClassType)
	newStats, newHP, _ := models.Baseline(class)

	team.Stats = models.CharacterStats{
		Strength:     newStats.Strength + team.Stats.Strength - oldStats.Strength,
		Intelligence: newStats.Intelligence + team.Stats.Intelligence - oldStats.Intelligence,
		Dexterity:    newStats.Dexterity + team.Stats.Dexterity - oldStats.Dexterity,
		Attack:       newStats.Attack + team.Stats.Attack - oldStats.Attack,
		Defense:      newStats.Defense + team.Stats.Defense - oldStats.Defense,
		Range:        newStats.Range + team.Stats.Range - oldStats.Range,
	}
	team.MaxHP = newHP + team.MaxHP - oldHP
	team.HP = team.MaxHP
	team.ClassType = class
	return team
}

func statField(s *models.CharacterStats, name string) *int {
	switch strings.ToLower(name) {
	case "strength":
		return &s.Strength
	case "intelligence":
		return &s.Intelligence
	case "dexterity":
		return &s.Dexterity
	case "attack":
		return &s.Attack
	case "defense":
		return &s.Defense
	case "range":
		return &s.Range
	}
	return nil
}

func copyPlayers(in map[string]models.Player) map[string]models.Player {
	out := make(map[string]models.Player, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyTeams(in map[string]models.Team) map[string]models.Team {
	out := make(map[string]models.Team, len(in)+1)
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
