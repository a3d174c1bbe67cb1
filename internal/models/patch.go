package models

// Patch is a partial GameState. A top-level key is present when its pointer,
// map or slice is non-nil; present keys replace the canonical value wholesale.
type Patch struct {
	RoomCode         *string           `json:"roomCode,omitempty"`
	IsStarted        *bool             `json:"isStarted,omitempty"`
	Players          map[string]Player `json:"players"`
	Teams            map[string]Team   `json:"teams"`
	Quizzes          []Quiz            `json:"quizzes"`
	CurrentQuizIndex *int              `json:"currentQuizIndex,omitempty"`
	Phase            *Phase            `json:"phase,omitempty"`
}

// FullPatch carries every key of s, so merging it replaces a replica entirely.
func FullPatch(s GameState) Patch {
	c := s.Clone()
	if c.Players == nil {
		c.Players = map[string]Player{}
	}
	if c.Teams == nil {
		c.Teams = map[string]Team{}
	}
	if c.Quizzes == nil {
		c.Quizzes = []Quiz{}
	}
	return Patch{
		RoomCode:         &c.RoomCode,
		IsStarted:        &c.IsStarted,
		Players:          c.Players,
		Teams:            c.Teams,
		Quizzes:          c.Quizzes,
		CurrentQuizIndex: &c.CurrentQuizIndex,
		Phase:            &c.Phase,
	}
}

func (p Patch) IsEmpty() bool {
	return p.RoomCode == nil && p.IsStarted == nil && p.Players == nil && p.Teams == nil &&
		p.Quizzes == nil && p.CurrentQuizIndex == nil && p.Phase == nil
}

// Clone deep-copies the present keys.
func (p Patch) Clone() Patch {
	out := Patch{
		Players: clonePlayers(p.Players),
		Teams:   cloneTeams(p.Teams),
		Quizzes: cloneQuizzes(p.Quizzes),
	}
	if p.RoomCode != nil {
		v := *p.RoomCode
		out.RoomCode = &v
	}
	if p.IsStarted != nil {
		v := *p.IsStarted
		out.IsStarted = &v
	}
	if p.CurrentQuizIndex != nil {
		v := *p.CurrentQuizIndex
		out.CurrentQuizIndex = &v
	}
	if p.Phase != nil {
		v := *p.Phase
		out.Phase = &v
	}
	return out
}

// Combine returns p with every key present in next replacing its own, which
// equals the effect of merging p and then next.
func (p Patch) Combine(next Patch) Patch {
	out := p.Clone()
	n := next.Clone()
	if n.RoomCode != nil {
		out.RoomCode = n.RoomCode
	}
	if n.IsStarted != nil {
		out.IsStarted = n.IsStarted
	}
	if n.Players != nil {
		out.Players = n.Players
	}
	if n.Teams != nil {
		out.Teams = n.Teams
	}
	if n.Quizzes != nil {
		out.Quizzes = n.Quizzes
	}
	if n.CurrentQuizIndex != nil {
		out.CurrentQuizIndex = n.CurrentQuizIndex
	}
	if n.Phase != nil {
		out.Phase = n.Phase
	}
	return out
}
