package state

import "edu-arena/internal/models"

// Merge overwrites every top-level key present in patch and keeps the rest of
// current. Nested entities are never merged field by field: a patch carrying
// Teams replaces the whole Teams mapping. The result shares no memory with
// either argument, and merging the same patch twice equals merging it once.
func Merge(current models.GameState, patch models.Patch) models.GameState {
	next := current.Clone()
	p := patch.Clone()

	if p.RoomCode != nil {
		next.RoomCode = *p.RoomCode
	}
	if p.IsStarted != nil {
		next.IsStarted = *p.IsStarted
	}
	if p.Players != nil {
		next.Players = p.Players
	}
	if p.Teams != nil {
		next.Teams = p.Teams
	}
	if p.Quizzes != nil {
		next.Quizzes = p.Quizzes
	}
	if p.CurrentQuizIndex != nil {
		next.CurrentQuizIndex = *p.CurrentQuizIndex
	}
	if p.Phase != nil {
		next.Phase = *p.Phase
	}
	return next
}
