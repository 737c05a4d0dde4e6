package engine

import (
	"errors"
	"testing"

	"github.com/jdcb4/word-guessy-online/internal/words"
)

var testCorpus = []words.Word{
	{Word: "beach", Category: "places", Difficulty: "easy"},
	{Word: "school", Category: "places", Difficulty: "easy"},
	{Word: "airport", Category: "places", Difficulty: "easy"},
	{Word: "volcano", Category: "places", Difficulty: "medium"},
	{Word: "dog", Category: "animals", Difficulty: "easy"},
	{Word: "cat", Category: "animals", Difficulty: "easy"},
}

func testSettings() Settings {
	return Settings{
		Rounds:       2,
		TurnDuration: 30,
		Categories:   []string{"places"},
		Difficulties: []string{"easy"},
		MaxTeams:     4,
	}
}

// stubPicks makes word and category selection deterministic: words come out
// in pool order, categories as the first remaining one.
func stubPicks(t *testing.T) {
	t.Helper()
	origWord, origCat := pickWord, pickCategory
	t.Cleanup(func() { pickWord, pickCategory = origWord, origCat })

	pickWord = func(pool []words.Word, used map[string]bool, category string) (words.Word, bool) {
		for _, w := range pool {
			if w.Category == category && !used[w.Word] {
				return w, true
			}
		}
		return words.Word{}, false
	}
	pickCategory = func(categories []string) string { return categories[0] }
}

func newLobbyState() State {
	host := Team{ID: "team-host", Name: "Reds"}
	s := NewState(host, testSettings(), testCorpus)
	_, s, _ = Apply(s, Command{Type: CmdJoinTeam, Team: Team{ID: "team-2", Name: "Blues"}})
	return s
}

func startedState(t *testing.T) State {
	t.Helper()
	s := newLobbyState()
	events, s, err := Apply(s, Command{Type: CmdStartGame, Actor: "team-host"})
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if !ContainsEvent(events, EvtGameStarted) || !ContainsEvent(events, EvtTurnReady) {
		t.Fatalf("expected GameStarted+TurnReady, got %+v", events)
	}
	return s
}

func TestStartGame(t *testing.T) {
	stubPicks(t)

	cases := []struct {
		name    string
		mutate  func(*State)
		actor   string
		wantErr error
	}{
		{name: "host starts", actor: "team-host"},
		{name: "non-host rejected", actor: "team-2", wantErr: ErrUnauthorized},
		{name: "unknown actor rejected", actor: "nope", wantErr: ErrUnauthorized},
		{
			name:    "empty categories",
			mutate:  func(s *State) { s.Settings.Categories = nil },
			actor:   "team-host",
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "empty difficulties",
			mutate:  func(s *State) { s.Settings.Difficulties = nil },
			actor:   "team-host",
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "filters yield zero words",
			mutate:  func(s *State) { s.Settings.Categories = []string{"movies"} },
			actor:   "team-host",
			wantErr: ErrNoWordsAvailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newLobbyState()
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			_, next, err := Apply(s, Command{Type: CmdStartGame, Actor: tc.actor})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if next.Turn != nil {
					t.Fatalf("rejected start must not create a turn")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if next.Turn == nil {
				t.Fatalf("expected turn state")
			}
			if next.Turn.TeamIndex != 0 || next.Turn.Round != 1 {
				t.Fatalf("want team 0 round 1, got %d/%d", next.Turn.TeamIndex, next.Turn.Round)
			}
			for _, team := range next.Teams {
				if next.Turn.Scores[team.ID] != 0 {
					t.Fatalf("scores must start at zero")
				}
			}
			if next.Phase() != PhaseTurnReady {
				t.Fatalf("want %v, got %v", PhaseTurnReady, next.Phase())
			}
		})
	}
}

func TestStartGameWhileInProgress(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, _, err := Apply(s, Command{Type: CmdStartGame, Actor: "team-host"})
	if !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("want ErrGameInProgress, got %v", err)
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, next, err := Apply(s, Command{Type: CmdJoinTeam, Team: Team{ID: "late", Name: "Latecomers"}})
	if !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("want ErrGameInProgress, got %v", err)
	}
	if len(next.Teams) != 2 {
		t.Fatalf("rejected join must not mutate roster")
	}
}

func TestJoinWhenFull(t *testing.T) {
	s := newLobbyState()
	s.Settings.MaxTeams = 2
	_, _, err := Apply(s, Command{Type: CmdJoinTeam, Team: Team{ID: "t3", Name: "Greens"}})
	if !errors.Is(err, ErrGameFull) {
		t.Fatalf("want ErrGameFull, got %v", err)
	}
}

func TestStartTurnAssignsWordAndAuthorizes(t *testing.T) {
	stubPicks(t)
	s := startedState(t)

	// Wrong actor first: no mutation allowed.
	_, next, err := Apply(s, Command{Type: CmdStartTurn, Actor: "team-2"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if next.Turn.Word != nil || next.Turn.Active {
		t.Fatalf("rejected start-turn must not mutate turn state")
	}

	events, s, err := Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtTurnStarted) || !ContainsEvent(events, EvtWordAssigned) {
		t.Fatalf("expected TurnStarted+WordAssigned, got %+v", events)
	}
	if s.Turn.Word == nil || s.Turn.Word.Word != "beach" {
		t.Fatalf("expected first places word, got %+v", s.Turn.Word)
	}
	if s.Phase() != PhaseTurnActive {
		t.Fatalf("want %v, got %v", PhaseTurnActive, s.Phase())
	}
	if s.Turn.Remaining != 30 {
		t.Fatalf("remaining should reset to turn duration, got %d", s.Turn.Remaining)
	}
}

func TestGuessScoresAndAdvancesWord(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	events, s, err := Apply(s, Command{Type: CmdGuessWord, Actor: "team-host", Word: "beach"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Turn.Scores["team-host"] != 1 {
		t.Fatalf("guess should score one point, got %d", s.Turn.Scores["team-host"])
	}
	if !s.Turn.Used["beach"] {
		t.Fatalf("guessed word must enter usedWords")
	}
	if len(s.Turn.Guessed) != 1 || s.Turn.Guessed[0] != "beach" {
		t.Fatalf("guessed list wrong: %+v", s.Turn.Guessed)
	}
	if !ContainsEvent(events, EvtWordAssigned) {
		t.Fatalf("expected a next word, got %+v", events)
	}
	if s.Turn.Word.Word != "school" {
		t.Fatalf("expected next word school, got %q", s.Turn.Word.Word)
	}
}

func TestSkipNoScorePenalty(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	before := s.Turn.Scores["team-host"]
	_, s, err := Apply(s, Command{Type: CmdSkipWord, Actor: "team-host", Word: "beach"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Turn.Scores["team-host"] != before {
		t.Fatalf("skip must not change score")
	}
	if len(s.Turn.Skipped) != 1 || !s.Turn.Used["beach"] {
		t.Fatalf("skip must record word as used and skipped")
	}
}

func TestCategoryExhaustionEndsTurn(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	// Three easy "places" words; the third guess exhausts the category.
	for i, w := range []string{"beach", "school", "airport"} {
		var events []Event
		var err error
		events, s, err = Apply(s, Command{Type: CmdGuessWord, Actor: "team-host", Word: w})
		if err != nil {
			t.Fatalf("guess %d: %v", i, err)
		}
		if i < 2 && ContainsEvent(events, EvtTurnEnded) {
			t.Fatalf("turn ended too early at guess %d", i)
		}
		if i == 2 && !ContainsEvent(events, EvtTurnEnded) {
			t.Fatalf("expected TurnEnded after exhausting category")
		}
	}

	if len(s.Turn.Used) != 3 {
		t.Fatalf("usedWords should have grown by 3, got %d", len(s.Turn.Used))
	}
	if s.Phase() != PhaseTurnReview {
		t.Fatalf("want %v, got %v", PhaseTurnReview, s.Phase())
	}
}

func TestEndTurnAdvancesTeamAndRound(t *testing.T) {
	stubPicks(t)
	s := startedState(t)

	// Team 0 -> team 1, same round.
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})
	_, s, err := Apply(s, Command{Type: CmdEndTurn, Actor: "team-host"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Turn.TeamIndex != 1 || s.Turn.Round != 1 {
		t.Fatalf("want team 1 round 1, got %d/%d", s.Turn.TeamIndex, s.Turn.Round)
	}
	if s.Phase() != PhaseTurnReady {
		t.Fatalf("want %v, got %v", PhaseTurnReady, s.Phase())
	}
	if s.Turn.Word != nil || len(s.Turn.Guessed) != 0 || len(s.Turn.Skipped) != 0 {
		t.Fatalf("per-turn state must be cleared for the next team")
	}

	// Team 1 -> team 0: index wraps, round increments.
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-2"})
	_, s, err = Apply(s, Command{Type: CmdEndTurn, Actor: "team-2"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Turn.TeamIndex != 0 || s.Turn.Round != 2 {
		t.Fatalf("want team 0 round 2, got %d/%d", s.Turn.TeamIndex, s.Turn.Round)
	}
}

func TestEndTurnSummaryFreezesEndingTurn(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})
	_, s, _ = Apply(s, Command{Type: CmdGuessWord, Actor: "team-host", Word: "beach"})

	events, s, err := Apply(s, Command{Type: CmdEndTurn, Actor: "team-host"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var ended *Event
	for i := range events {
		if events[i].Type == EvtTurnEnded {
			ended = &events[i]
		}
	}
	if ended == nil || ended.Summary == nil {
		t.Fatalf("TurnEnded must carry a summary, got %+v", events)
	}

	// The state has already advanced to the next team; the summary must
	// still describe the turn that just ended.
	if s.Turn.TeamIndex != 1 {
		t.Fatalf("state should advance to team 1, got %d", s.Turn.TeamIndex)
	}
	sum := ended.Summary
	if sum.TeamIndex != 0 || sum.Round != 1 {
		t.Fatalf("summary should keep the ending team/round, got %d/%d", sum.TeamIndex, sum.Round)
	}
	if len(sum.Guessed) != 1 || sum.Guessed[0] != "beach" {
		t.Fatalf("summary lost the guessed list: %+v", sum.Guessed)
	}
	if sum.LastWord == nil || sum.LastWord.Word != "school" {
		t.Fatalf("summary should keep the word on display, got %+v", sum.LastWord)
	}
	if sum.Scores["team-host"] != 1 {
		t.Fatalf("summary scores wrong: %+v", sum.Scores)
	}
}

func TestGameOverAfterFinalRound(t *testing.T) {
	stubPicks(t)
	s := startedState(t)

	// Give the second team a winning score, then play out both rounds.
	s.Turn.Scores["team-2"] = 5

	actors := []string{"team-host", "team-2", "team-host", "team-2"}
	for i, actor := range actors {
		var events []Event
		var err error
		_, s, err = Apply(s, Command{Type: CmdStartTurn, Actor: actor})
		if err != nil {
			t.Fatalf("start turn %d: %v", i, err)
		}
		events, s, err = Apply(s, Command{Type: CmdEndTurn, Actor: actor})
		if err != nil {
			t.Fatalf("end turn %d: %v", i, err)
		}
		if i == len(actors)-1 {
			if !ContainsEvent(events, EvtGameEnded) {
				t.Fatalf("expected GameEnded on final end-turn")
			}
		} else if ContainsEvent(events, EvtGameEnded) {
			t.Fatalf("game ended too early at turn %d", i)
		}
	}

	if s.Phase() != PhaseGameOver {
		t.Fatalf("want %v, got %v", PhaseGameOver, s.Phase())
	}
	if s.Winner == nil || s.Winner.ID != "team-2" {
		t.Fatalf("want winner team-2, got %+v", s.Winner)
	}
}

func TestWinnerTieBreaksByJoinOrder(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	s.Turn.Round = 2
	s.Turn.TeamIndex = 1
	s.Turn.Review = true
	// Equal scores: first-joined team wins.
	s.Turn.Scores["team-host"] = 3
	s.Turn.Scores["team-2"] = 3

	events, s, err := Apply(s, Command{Type: CmdEndTurn, Actor: "team-2"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtGameEnded) {
		t.Fatalf("expected GameEnded")
	}
	if s.Winner.ID != "team-host" {
		t.Fatalf("tie must break to join order, got %s", s.Winner.ID)
	}
}

func TestTimerTick(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	s.Settings.TurnDuration = 2
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	events, s, err := Apply(s, Command{Type: CmdTimerTick})
	if err != nil || !ContainsEvent(events, EvtStateUpdated) {
		t.Fatalf("first tick should update state, got %+v err=%v", events, err)
	}
	if s.Turn.Remaining != 1 {
		t.Fatalf("want 1 remaining, got %d", s.Turn.Remaining)
	}

	events, s, err = Apply(s, Command{Type: CmdTimerTick})
	if err != nil || !ContainsEvent(events, EvtTurnEnded) {
		t.Fatalf("expiring tick should end turn, got %+v err=%v", events, err)
	}
	if s.Turn.Remaining != 0 || s.Phase() != PhaseTurnReview {
		t.Fatalf("expiry should leave review phase at 0s, got %v/%d", s.Phase(), s.Turn.Remaining)
	}

	// A stale tick after the turn ended is a no-op.
	events, next, err := Apply(s, Command{Type: CmdTimerTick})
	if err != nil || len(events) != 0 {
		t.Fatalf("tick outside active turn must be ignored, got %+v err=%v", events, err)
	}
	if next.Turn.Remaining != 0 {
		t.Fatalf("ignored tick must not mutate state")
	}
}

func TestNonActiveTeamNeverMutates(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	cmds := []Command{
		{Type: CmdStartTurn, Actor: "team-2"},
		{Type: CmdGuessWord, Actor: "team-2", Word: "beach"},
		{Type: CmdSkipWord, Actor: "team-2", Word: "beach"},
		{Type: CmdEndTurn, Actor: "team-2"},
	}
	for _, cmd := range cmds {
		_, next, err := Apply(s, cmd)
		if !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrWrongPhase) {
			t.Fatalf("%s: want rejection, got %v", cmd.Type, err)
		}
		if next.Turn.Scores["team-2"] != 0 || len(next.Turn.Used) != 0 {
			t.Fatalf("%s: rejected action mutated state", cmd.Type)
		}
	}
}

func TestRemoveTeamRevalidatesIndex(t *testing.T) {
	stubPicks(t)
	s := newLobbyState()
	_, s, _ = Apply(s, Command{Type: CmdJoinTeam, Team: Team{ID: "team-3", Name: "Greens"}})

	events, s, err := Apply(s, Command{Type: CmdStartGame, Actor: "team-host"})
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	_ = events

	// Advance to the last team, then remove a team before it.
	s.Turn.TeamIndex = 2
	_, s, err = Apply(s, Command{Type: CmdRemoveTeam, Team: Team{ID: "team-2"}})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Turn.TeamIndex != 1 {
		t.Fatalf("index should shift down with the roster, got %d", s.Turn.TeamIndex)
	}
	if s.Turn.TeamIndex >= len(s.Teams) {
		t.Fatalf("index out of range after removal")
	}

	// Remove the active team itself: turn resets and passes on.
	_, s, err = Apply(s, Command{Type: CmdRemoveTeam, Team: Team{ID: "team-3"}})
	if err != nil {
		t.Fatalf("remove active: %v", err)
	}
	if s.Turn.TeamIndex != 0 || s.Phase() != PhaseTurnReady {
		t.Fatalf("active-team removal should hand the slot on, got idx=%d phase=%v", s.Turn.TeamIndex, s.Phase())
	}

	// Removing the last team ends the session.
	events, s, err = Apply(s, Command{Type: CmdRemoveTeam, Team: Team{ID: "team-host"}})
	if err != nil {
		t.Fatalf("remove last: %v", err)
	}
	if !ContainsEvent(events, EvtGameEnded) || !s.Done {
		t.Fatalf("empty roster should end the game")
	}
}

func TestUsedWordsMonotonic(t *testing.T) {
	stubPicks(t)
	s := startedState(t)
	_, s, _ = Apply(s, Command{Type: CmdStartTurn, Actor: "team-host"})

	seen := 0
	step := func(cmd Command) {
		t.Helper()
		_, next, _ := Apply(s, cmd)
		if len(next.Turn.Used) < seen {
			t.Fatalf("usedWords shrank: %d -> %d", seen, len(next.Turn.Used))
		}
		s = next
		seen = len(s.Turn.Used)
	}

	step(Command{Type: CmdGuessWord, Actor: "team-host", Word: "beach"})
	step(Command{Type: CmdTimerTick})
	step(Command{Type: CmdSkipWord, Actor: "team-host", Word: "school"})
	step(Command{Type: CmdGuessWord, Actor: "team-2", Word: "airport"}) // rejected
	if seen != 2 {
		t.Fatalf("want 2 used words, got %d", seen)
	}
}
