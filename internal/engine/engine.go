package engine

import (
	"math/rand"

	"github.com/jdcb4/word-guessy-online/internal/words"
)

type CommandType string

const (
	CmdJoinTeam       CommandType = "JoinTeam"
	CmdRemoveTeam     CommandType = "RemoveTeam"
	CmdUpdateSettings CommandType = "UpdateSettings"
	CmdStartGame      CommandType = "StartGame"
	CmdStartTurn      CommandType = "StartTurn"
	CmdGuessWord      CommandType = "GuessWord"
	CmdSkipWord       CommandType = "SkipWord"
	CmdEndTurn        CommandType = "EndTurn"
	CmdTimerTick      CommandType = "TimerTick"
)

// Command is one attempted transition. Actor is the durable team ID the
// request was resolved to; authorization always goes through it, never
// through connection identifiers. Timer-driven commands carry no actor.
type Command struct {
	Type     CommandType
	Actor    string
	Team     Team     // JoinTeam: the team to append; RemoveTeam: matched by ID
	Word     string   // GuessWord / SkipWord
	Settings Settings // UpdateSettings
}

type EventType string

const (
	EvtRosterChanged   EventType = "RosterChanged"
	EvtSettingsChanged EventType = "SettingsChanged"
	EvtGameStarted     EventType = "GameStarted"
	EvtTurnReady       EventType = "TurnReady"
	EvtTurnStarted     EventType = "TurnStarted"
	EvtWordAssigned    EventType = "WordAssigned"
	EvtStateUpdated    EventType = "StateUpdated"
	EvtTurnEnded       EventType = "TurnEnded"
	EvtGameEnded       EventType = "GameEnded"
)

type Event struct {
	Type    EventType
	Team    Team         // joined/removed team, or the winner on GameEnded
	Word    *words.Word  // the assigned word on WordAssigned
	Summary *TurnSummary // the ended turn's data on TurnEnded
}

// TurnSummary freezes a turn's data at the moment it ends. EndTurn advances
// the state in the same transition, so TurnEnded broadcasts must render from
// this capture, not from the resulting state.
type TurnSummary struct {
	TeamIndex int
	Round     int
	Scores    map[string]int
	Category  string
	Remaining int
	Guessed   []string
	Skipped   []string
	LastWord  *words.Word
}

func summarize(t *TurnState) *TurnSummary {
	scores := make(map[string]int, len(t.Scores))
	for k, v := range t.Scores {
		scores[k] = v
	}
	return &TurnSummary{
		TeamIndex: t.TeamIndex,
		Round:     t.Round,
		Scores:    scores,
		Category:  t.Category,
		Remaining: t.Remaining,
		Guessed:   t.Guessed,
		Skipped:   t.Skipped,
		LastWord:  t.Word,
	}
}

// Test seams: selection is random in production, stubbed in tests.
var pickWord = words.Pick
var pickCategory = func(categories []string) string {
	return categories[rand.Intn(len(categories))]
}

// Apply validates cmd against s and returns the events to broadcast plus the
// next state. On error the input state is returned unchanged and nothing may
// be mutated. The returned state shares map/slice storage with the input;
// the owning session actor treats Apply as a destructive update.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Done {
		return nil, s, ErrWrongPhase
	}

	switch cmd.Type {
	case CmdJoinTeam:
		return applyJoinTeam(s, cmd)
	case CmdRemoveTeam:
		return applyRemoveTeam(s, cmd)
	case CmdUpdateSettings:
		return applyUpdateSettings(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd)
	case CmdStartTurn:
		return applyStartTurn(s, cmd)
	case CmdGuessWord, CmdSkipWord:
		return applyWordResult(s, cmd)
	case CmdEndTurn:
		return applyEndTurn(s, cmd)
	case CmdTimerTick:
		return applyTimerTick(s)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoinTeam(s State, cmd Command) ([]Event, State, error) {
	if s.Turn != nil {
		return nil, s, ErrGameInProgress
	}
	if s.Settings.MaxTeams > 0 && len(s.Teams) >= s.Settings.MaxTeams {
		return nil, s, ErrGameFull
	}

	newState := s
	newState.Teams = append(append([]Team{}, s.Teams...), cmd.Team)
	return []Event{{Type: EvtRosterChanged, Team: cmd.Team}}, newState, nil
}

func applyRemoveTeam(s State, cmd Command) ([]Event, State, error) {
	idx := s.teamIndex(cmd.Team.ID)
	if idx < 0 {
		return nil, s, nil
	}

	newState := s
	newState.Teams = append(append([]Team{}, s.Teams[:idx]...), s.Teams[idx+1:]...)

	if len(newState.Teams) == 0 {
		newState.Done = true
		return []Event{{Type: EvtGameEnded}}, newState, nil
	}

	events := []Event{{Type: EvtRosterChanged, Team: cmd.Team}}
	if newState.Turn == nil {
		return events, newState, nil
	}

	// Revalidate the current-team pointer against the shortened list.
	turn := newState.Turn
	delete(turn.Scores, cmd.Team.ID)
	switch {
	case idx < turn.TeamIndex:
		turn.TeamIndex--
	case idx == turn.TeamIndex:
		// The active team left mid-game: its slot passes to the next team
		// and any in-flight turn is abandoned.
		turn.TeamIndex = turn.TeamIndex % len(newState.Teams)
		turn.Word = nil
		turn.Guessed = nil
		turn.Skipped = nil
		turn.Active = false
		turn.Review = false
		turn.Remaining = newState.Settings.TurnDuration
		events = append(events, Event{Type: EvtTurnReady})
	}
	return events, newState, nil
}

func applyUpdateSettings(s State, cmd Command) ([]Event, State, error) {
	if cmd.Actor != s.HostTeamID {
		return nil, s, ErrUnauthorized
	}
	if s.Turn != nil {
		return nil, s, ErrGameInProgress
	}

	newState := s
	newState.Settings = cmd.Settings
	return []Event{{Type: EvtSettingsChanged}}, newState, nil
}

func applyStartGame(s State, cmd Command) ([]Event, State, error) {
	if cmd.Actor != s.HostTeamID {
		return nil, s, ErrUnauthorized
	}
	if s.Turn != nil {
		return nil, s, ErrGameInProgress
	}
	if len(s.Teams) < 1 {
		return nil, s, ErrInvalidSettings
	}
	if len(s.Settings.Categories) == 0 || len(s.Settings.Difficulties) == 0 {
		return nil, s, ErrInvalidSettings
	}

	pool := words.Available(s.Corpus, s.Settings.Categories, s.Settings.Difficulties)
	if len(pool) == 0 {
		return nil, s, ErrNoWordsAvailable
	}

	used := make(map[string]bool)
	scores := make(map[string]int, len(s.Teams))
	for _, t := range s.Teams {
		scores[t.ID] = 0
	}

	newState := s
	newState.Turn = &TurnState{
		TeamIndex: 0,
		Round:     1,
		Scores:    scores,
		Category:  pickCategory(words.WithRemaining(pool, used, s.Settings.Categories)),
		Remaining: s.Settings.TurnDuration,
		Used:      used,
		Pool:      pool,
	}

	return []Event{{Type: EvtGameStarted}, {Type: EvtTurnReady}}, newState, nil
}

func applyStartTurn(s State, cmd Command) ([]Event, State, error) {
	if s.Turn == nil {
		return nil, s, ErrGameNotStarted
	}
	if s.Phase() != PhaseTurnReady {
		return nil, s, ErrWrongPhase
	}
	if err := requireActiveTeam(s, cmd.Actor); err != nil {
		return nil, s, err
	}

	newState := s
	turn := newState.Turn

	w, ok := pickWord(turn.Pool, turn.Used, turn.Category)
	if !ok {
		// Category already exhausted: nothing to play, straight to review.
		turn.Review = true
		return []Event{{Type: EvtTurnEnded, Summary: summarize(turn)}}, newState, nil
	}

	turn.Word = &w
	turn.Active = true
	turn.Remaining = newState.Settings.TurnDuration
	return []Event{
		{Type: EvtTurnStarted},
		{Type: EvtWordAssigned, Word: &w},
	}, newState, nil
}

func applyWordResult(s State, cmd Command) ([]Event, State, error) {
	if s.Turn == nil {
		return nil, s, ErrGameNotStarted
	}
	if s.Phase() != PhaseTurnActive {
		return nil, s, ErrWrongPhase
	}
	if err := requireActiveTeam(s, cmd.Actor); err != nil {
		return nil, s, err
	}

	newState := s
	turn := newState.Turn

	if cmd.Type == CmdGuessWord {
		turn.Scores[cmd.Actor]++
		turn.Guessed = append(turn.Guessed, cmd.Word)
	} else {
		// Skips carry no score penalty.
		turn.Skipped = append(turn.Skipped, cmd.Word)
	}
	turn.Used[cmd.Word] = true

	next, ok := pickWord(turn.Pool, turn.Used, turn.Category)
	if !ok {
		// Category exhausted mid-turn. Expected flow, not an error.
		turn.Active = false
		turn.Review = true
		return []Event{{Type: EvtTurnEnded, Summary: summarize(turn)}}, newState, nil
	}

	turn.Word = &next
	return []Event{
		{Type: EvtStateUpdated},
		{Type: EvtWordAssigned, Word: &next},
	}, newState, nil
}

func applyEndTurn(s State, cmd Command) ([]Event, State, error) {
	if s.Turn == nil {
		return nil, s, ErrGameNotStarted
	}
	phase := s.Phase()
	if phase != PhaseTurnActive && phase != PhaseTurnReview {
		return nil, s, ErrWrongPhase
	}
	if err := requireActiveTeam(s, cmd.Actor); err != nil {
		return nil, s, err
	}

	newState := s
	turn := newState.Turn

	var events []Event
	if phase == PhaseTurnActive {
		// Player ended the turn before the timer did; the summary is captured
		// here, before the advancement below clears the per-turn lists.
		turn.Active = false
		turn.Review = true
		events = append(events, Event{Type: EvtTurnEnded, Summary: summarize(turn)})
	}

	turn.TeamIndex = (turn.TeamIndex + 1) % len(newState.Teams)
	if turn.TeamIndex == 0 {
		turn.Round++
	}

	if turn.Round > newState.Settings.Rounds {
		return append(events, endGame(&newState)), newState, nil
	}

	remaining := words.WithRemaining(turn.Pool, turn.Used, newState.Settings.Categories)
	if len(remaining) == 0 {
		// Whole corpus exhausted.
		return append(events, endGame(&newState)), newState, nil
	}

	turn.Category = pickCategory(remaining)
	turn.Word = nil
	turn.Guessed = nil
	turn.Skipped = nil
	turn.Review = false
	turn.Remaining = newState.Settings.TurnDuration
	return append(events, Event{Type: EvtTurnReady}), newState, nil
}

func applyTimerTick(s State) ([]Event, State, error) {
	// A tick racing a just-ended turn is dropped by the session's timer
	// generation check; this guard covers the same race inside one message.
	if s.Phase() != PhaseTurnActive {
		return nil, s, nil
	}

	newState := s
	turn := newState.Turn
	turn.Remaining--
	if turn.Remaining > 0 {
		return []Event{{Type: EvtStateUpdated}}, newState, nil
	}

	turn.Remaining = 0
	turn.Active = false
	turn.Review = true
	return []Event{{Type: EvtTurnEnded, Summary: summarize(turn)}}, newState, nil
}

func endGame(s *State) Event {
	w := s.winner()
	s.Done = true
	s.Winner = &w
	s.Turn.Active = false
	s.Turn.Review = false
	return Event{Type: EvtGameEnded, Team: w}
}

func requireActiveTeam(s State, actor string) error {
	active, ok := s.ActiveTeam()
	if !ok || actor == "" || actor != active.ID {
		return ErrUnauthorized
	}
	return nil
}

// ContainsEvent reports whether events holds an event of the given type.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
