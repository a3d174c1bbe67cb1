package services

import "errors"

var (
	ErrMissingName        = errors.New("player name is required")
	ErrMissingRoomCode    = errors.New("room code is required")
	ErrInvalidTeam        = errors.New("invalid team")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidClass       = errors.New("invalid class")
	ErrInvalidPhase       = errors.New("invalid phase")
	ErrInvalidQuiz        = errors.New("quiz needs four options and a valid answer index")
	ErrRoleLocked         = errors.New("role and class are already selected")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrAlreadyStarted     = errors.New("game is already started")
	ErrNotStarted         = errors.New("game has not started")
	ErrNotCombatant       = errors.New("only combat players can do that")
	ErrTeamDead           = errors.New("team is dead")
	ErrInsufficientPoints = errors.New("not enough team points")
	ErrUnknownStat        = errors.New("unknown stat")
	ErrUnknownIntent      = errors.New("unknown intent")
	ErrInvalidDirection   = errors.New("move direction must be finite and within [-1, 1]")
)
