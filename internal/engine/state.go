package engine

import (
	"github.com/jdcb4/word-guessy-online/internal/words"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseTurnReady  Phase = "turn_ready"
	PhaseTurnActive Phase = "turn_active"
	PhaseTurnReview Phase = "turn_review"
	PhaseGameOver   Phase = "game_over"
)

// Team is a durable participant identity. The ID is assigned once at join
// time and never changes; transport connections map onto it elsewhere.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Settings struct {
	Rounds       int      `json:"rounds"`
	TurnDuration int      `json:"turnDuration"`
	Categories   []string `json:"categories"`
	Difficulties []string `json:"difficulties"`
	MaxTeams     int      `json:"maxTeams"`
}

// TurnState is the mutable in-progress game data. It exists only between
// StartGame and game over.
type TurnState struct {
	TeamIndex int            // index into State.Teams; always valid
	Round     int            // 1-based
	Scores    map[string]int // team ID -> score
	Category  string
	Word      *words.Word // nil between turns
	Remaining int         // seconds left in the current turn
	Used      map[string]bool
	Pool      []words.Word // corpus filtered by settings, fixed at StartGame
	Guessed   []string
	Skipped   []string
	Active    bool // a turn is running (word set, timer ticking)
	Review    bool // turn finished, waiting for active team to confirm
}

// State is one session's complete game state. It is owned by a single
// session actor; Apply never shares it across goroutines.
type State struct {
	HostTeamID string
	Teams      []Team
	Settings   Settings
	Corpus     []words.Word
	Turn       *TurnState
	Done       bool
	Winner     *Team // set once Done
}

func NewState(host Team, settings Settings, corpus []words.Word) State {
	return State{
		HostTeamID: host.ID,
		Teams:      []Team{host},
		Settings:   settings,
		Corpus:     corpus,
	}
}

func (s State) Phase() Phase {
	switch {
	case s.Done:
		return PhaseGameOver
	case s.Turn == nil:
		return PhaseLobby
	case s.Turn.Active:
		return PhaseTurnActive
	case s.Turn.Review:
		return PhaseTurnReview
	default:
		return PhaseTurnReady
	}
}

// ActiveTeam returns the team whose turn it currently is.
func (s State) ActiveTeam() (Team, bool) {
	if s.Turn == nil || len(s.Teams) == 0 {
		return Team{}, false
	}
	if s.Turn.TeamIndex < 0 || s.Turn.TeamIndex >= len(s.Teams) {
		return Team{}, false
	}
	return s.Teams[s.Turn.TeamIndex], true
}

func (s State) teamIndex(id string) int {
	for i, t := range s.Teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// winner picks the team with the strictly highest score; ties resolve to the
// earliest team in join order.
func (s State) winner() Team {
	best := s.Teams[0]
	bestScore := s.Turn.Scores[best.ID]
	for _, t := range s.Teams[1:] {
		if s.Turn.Scores[t.ID] > bestScore {
			best = t
			bestScore = s.Turn.Scores[t.ID]
		}
	}
	return best
}
