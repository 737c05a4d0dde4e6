package engine

import "errors"

var ErrGameNotFound = errors.New("game not found")
var ErrGameFull = errors.New("game is full")
var ErrGameInProgress = errors.New("game already in progress")
var ErrGameNotStarted = errors.New("game not started")
var ErrUnauthorized = errors.New("unauthorized")
var ErrWrongPhase = errors.New("action not valid in current phase")
var ErrInvalidSettings = errors.New("invalid settings")
var ErrNoWordsAvailable = errors.New("no words available for chosen settings")
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrorKind maps an engine error onto the wire-level error taxonomy so
// clients can match on a stable string instead of a message.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "GameNotFound"
	case errors.Is(err, ErrGameFull):
		return "GameFull"
	case errors.Is(err, ErrGameInProgress):
		return "GameInProgress"
	case errors.Is(err, ErrGameNotStarted):
		return "GameNotStarted"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrWrongPhase):
		return "WrongPhase"
	case errors.Is(err, ErrInvalidSettings):
		return "InvalidSettings"
	case errors.Is(err, ErrNoWordsAvailable):
		return "NoWordsAvailable"
	default:
		return "Internal"
	}
}
