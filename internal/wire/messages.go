// Package wire defines the JSON messages exchanged with clients. Every
// inbound message is validated here before it reaches any game logic.
package wire

import (
	"fmt"

	"github.com/jdcb4/word-guessy-online/internal/engine"
	"github.com/jdcb4/word-guessy-online/internal/words"
)

// Client -> server message types.
const (
	MsgHostGame       = "host-game"
	MsgJoinTeam       = "join-team"
	MsgJoinRoom       = "join-room"
	MsgIdentifyTeam   = "identify-team"
	MsgRegisterPlayer = "register-player"
	MsgUpdateSettings = "update-settings"
	MsgStartGame      = "start-game"
	MsgStartTurn      = "start-turn"
	MsgWordGuessed    = "word-guessed"
	MsgWordSkipped    = "word-skipped"
	MsgEndTurn        = "end-turn"
	MsgGetGameState   = "get-game-state"
)

// ClientMessage is the tagged envelope for all client actions. Which fields
// are required depends on Type; Validate enforces that at the boundary.
type ClientMessage struct {
	Type       string           `json:"type"`
	Code       string           `json:"gameCode,omitempty"`
	TeamName   string           `json:"teamName,omitempty"`
	Word       string           `json:"word,omitempty"`
	TeamID     string           `json:"teamId,omitempty"`
	PreviousID string           `json:"previousId,omitempty"`
	Settings   *engine.Settings `json:"settings,omitempty"`
}

func (m ClientMessage) Validate() error {
	switch m.Type {
	case MsgHostGame:
		if m.TeamName == "" {
			return fmt.Errorf("host-game requires teamName")
		}
	case MsgJoinTeam:
		if m.Code == "" || m.TeamName == "" {
			return fmt.Errorf("join-team requires gameCode and teamName")
		}
	case MsgIdentifyTeam:
		if m.Code == "" || (m.TeamID == "" && m.TeamName == "") {
			return fmt.Errorf("identify-team requires gameCode and teamId or teamName")
		}
	case MsgRegisterPlayer:
		if m.PreviousID == "" {
			return fmt.Errorf("register-player requires previousId")
		}
	case MsgUpdateSettings:
		if m.Code == "" || m.Settings == nil {
			return fmt.Errorf("update-settings requires gameCode and settings")
		}
	case MsgWordGuessed, MsgWordSkipped:
		if m.Code == "" || m.Word == "" {
			return fmt.Errorf("%s requires gameCode and word", m.Type)
		}
	case MsgJoinRoom, MsgStartGame, MsgStartTurn, MsgEndTurn, MsgGetGameState:
		if m.Code == "" {
			return fmt.Errorf("%s requires gameCode", m.Type)
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Server -> client message types.
const (
	MsgGameCreated    = "game-created"
	MsgGameJoined     = "game-joined"
	MsgGameUpdated    = "game-updated"
	MsgGameStarted    = "game-started"
	MsgTurnReady      = "turn-ready"
	MsgTurnStarted    = "turn-started"
	MsgStateUpdate    = "game-state-update"
	MsgGameState      = "game-state"
	MsgTurnEnded      = "turn-ended"
	MsgGameEnded      = "game-ended"
	MsgWordToGuess    = "word-to-guess"
	MsgTeamIdentified = "team-identified"
	MsgError          = "error"
)

type GameCreated struct {
	Type   string `json:"type"`
	Code   string `json:"gameCode"`
	TeamID string `json:"teamId"`
}

type GameJoined struct {
	Type     string        `json:"type"`
	Code     string        `json:"gameCode"`
	TeamID   string        `json:"teamId"`
	TeamName string        `json:"teamName"`
	Teams    []engine.Team `json:"teams"`
}

type GameUpdated struct {
	Type     string          `json:"type"`
	Teams    []engine.Team   `json:"teams"`
	Settings engine.Settings `json:"settings"`
}

type GameStarted struct {
	Type string `json:"type"`
}

// TurnSnapshot carries the shared phase-broadcast fields. The current word
// is deliberately absent: it travels only inside WordToGuess, only to the
// active team.
type TurnSnapshot struct {
	CurrentTeamIndex int            `json:"currentTeamIndex"`
	CurrentRound     int            `json:"currentRound"`
	Scores           map[string]int `json:"scores"`
	TimeRemaining    int            `json:"timeRemaining"`
	CurrentCategory  string         `json:"currentCategory"`
	Teams            []engine.Team  `json:"teams"`
	ActiveTeamID     string         `json:"activeTeamId"`
	RoundWords       RoundWords     `json:"roundWords"`
}

type RoundWords struct {
	Guessed []string `json:"guessed"`
	Skipped []string `json:"skipped"`
}

type TurnReady struct {
	Type string `json:"type"`
	TurnSnapshot
}

type TurnStarted struct {
	Type string `json:"type"`
	TurnSnapshot
}

type StateUpdate struct {
	Type string `json:"type"`
	TurnSnapshot
}

// GameState answers get-game-state for an in-progress game.
type GameState struct {
	Type  string `json:"type"`
	Phase string `json:"phase"`
	TurnSnapshot
}

type TurnEnded struct {
	Type string `json:"type"`
	TurnSnapshot
	LastWord *words.Word `json:"lastWord,omitempty"`
}

type GameEnded struct {
	Type        string         `json:"type"`
	Winner      string         `json:"winner,omitempty"`
	FinalScores map[string]int `json:"finalScores,omitempty"`
	Message     string         `json:"message,omitempty"`
}

type WordToGuess struct {
	Type     string `json:"type"`
	Word     string `json:"word"`
	Category string `json:"category"`
}

type TeamIdentified struct {
	Type     string `json:"type"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewError(kind, message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Kind: kind, Message: message}
}
