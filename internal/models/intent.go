package models

type IntentKind string

const (
	IntentMove        IntentKind = "MOVE"
	IntentAttack      IntentKind = "ATTACK"
	IntentAnswerQuiz  IntentKind = "ANSWER_QUIZ"
	IntentUpgradeStat IntentKind = "UPGRADE_STAT"
)

// Intent is a user action not yet resolved into a patch. Only the fields of
// its kind are meaningful: X/Y for MOVE, Correct for ANSWER_QUIZ, Stat for UPGRADE_STAT.
type Intent struct {
	Kind     IntentKind `json:"kind" validate:"required,oneof=MOVE ATTACK ANSWER_QUIZ UPGRADE_STAT"`
	PlayerID string     `json:"playerId" validate:"required"`
	X        float64    `json:"x,omitempty" validate:"gte=-1,lte=1"`
	Y        float64    `json:"y,omitempty" validate:"gte=-1,lte=1"`
	Correct  bool       `json:"correct,omitempty"`
	Stat     string     `json:"stat,omitempty" validate:"required_if=Kind UPGRADE_STAT"`
	At       int64      `json:"at,omitempty"` // unix milliseconds, stamped by the resolving authority
}

// JoinRequest announces a participant and its one-time team, role and class selection.
type JoinRequest struct {
	RoomCode  string    `json:"roomCode" validate:"required"`
	Name      string    `json:"name" validate:"required,max=32"`
	TeamID    string    `json:"teamId" validate:"required"`
	Role      Role      `json:"role" validate:"required,oneof=QUIZ SUPPORT COMBAT"`
	ClassType ClassType `json:"classType" validate:"required,oneof=WARRIOR MAGE ARCHER ROGUE"`
}

func Move(playerID string, x, y float64) Intent {
	return Intent{Kind: IntentMove, PlayerID: playerID, X: x, Y: y}
}

func Attack(playerID string) Intent {
	return Intent{Kind: IntentAttack, PlayerID: playerID}
}

func AnswerQuiz(playerID string, correct bool) Intent {
	return Intent{Kind: IntentAnswerQuiz, PlayerID: playerID, Correct: correct}
}

func UpgradeStat(playerID, stat string) Intent {
	return Intent{Kind: IntentUpgradeStat, PlayerID: playerID, Stat: stat}
}
