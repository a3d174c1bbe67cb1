package state

import (
	"reflect"
	"testing"

	"edu-arena/internal/models"
)

func sampleState() models.GameState {
	s := models.NewGameState("ABCDE", []models.Quiz{{Question: "q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}})
	s.Players["alice"] = models.Player{ID: "alice", Name: "Alice", TeamID: "A", Role: models.RoleCombat, ClassType: models.Warrior}
	s.Teams["A"] = models.Team{ID: "A", HP: 200, MaxHP: 200, Points: 3}
	s.Teams["B"] = models.Team{ID: "B", HP: 120, MaxHP: 120}
	return s
}

func TestMergeIsIdempotent(t *testing.T) {
	started := true
	phase := models.PhaseBattle
	patches := []models.Patch{
		{},
		{IsStarted: &started},
		{Phase: &phase, Teams: map[string]models.Team{"A": {ID: "A", HP: 10, MaxHP: 200}}},
		models.FullPatch(models.NewGameState("ZZZZZ", nil)),
		{Players: map[string]models.Player{}},
	}
	for i, p := range patches {
		once := Merge(sampleState(), p)
		twice := Merge(once, p)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("patch %d: merge not idempotent:\nonce=%#v\ntwice=%#v", i, once, twice)
		}
	}
}

func TestMergeReplacesWholeMapping(t *testing.T) {
	updated := models.Team{ID: "A", HP: 150, MaxHP: 200}
	got := Merge(sampleState(), models.Patch{Teams: map[string]models.Team{"A": updated}})

	if len(got.Teams) != 1 {
		t.Fatalf("expected only team A after merge, got %d teams", len(got.Teams))
	}
	if _, ok := got.Teams["B"]; ok {
		t.Fatalf("team B should have been dropped by the whole-mapping replace")
	}
	if got.Teams["A"].HP != 150 {
		t.Fatalf("team A not replaced: %#v", got.Teams["A"])
	}
	if len(got.Players) != 1 || len(got.Quizzes) != 1 || got.RoomCode != "ABCDE" {
		t.Fatalf("absent keys must be kept: %#v", got)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	current := sampleState()
	patchTeams := map[string]models.Team{"A": {ID: "A", HP: 1}}
	got := Merge(current, models.Patch{Teams: patchTeams})

	patchTeams["A"] = models.Team{ID: "A", HP: 99}
	got.Players["mallory"] = models.Player{ID: "mallory"}

	if got.Teams["A"].HP != 1 {
		t.Fatalf("merged state aliases the patch")
	}
	if _, ok := current.Players["mallory"]; ok {
		t.Fatalf("merged state aliases the current state")
	}
}

func TestMergeFullPatchReplacesReplica(t *testing.T) {
	replica := sampleState()
	canonical := models.NewGameState("ABCDE", nil)
	canonical.IsStarted = true

	got := Merge(replica, models.FullPatch(canonical))
	if len(got.Teams) != 0 || len(got.Players) != 0 || len(got.Quizzes) != 0 || !got.IsStarted {
		t.Fatalf("full patch should replace the replica wholesale, got %#v", got)
	}
}

func TestCombinedPatchEqualsSequentialMerges(t *testing.T) {
	started := true
	phase := models.PhaseBattle
	first := models.Patch{
		IsStarted: &started,
		Teams:     map[string]models.Team{"A": {ID: "A", HP: 150, MaxHP: 200}},
	}
	second := models.Patch{
		Phase: &phase,
		Teams: map[string]models.Team{"C": {ID: "C", HP: 90, MaxHP: 140}},
	}

	want := Merge(Merge(sampleState(), first), second)
	got := Merge(sampleState(), first.Combine(second))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("combined patch diverged:\n got %+v\nwant %+v", got, want)
	}
}
