package session

import (
	"go.uber.org/zap"

	"github.com/jdcb4/word-guessy-online/internal/engine"
	"github.com/jdcb4/word-guessy-online/internal/wire"
)

// snapshot copies the broadcastable slice of game state. Maps and slices are
// duplicated because outboxes hand the value to writer goroutines that
// marshal it after this handler has moved on.
func (s *Session) snapshot() wire.TurnSnapshot {
	snap := wire.TurnSnapshot{Teams: s.teams()}
	t := s.state.Turn
	if t == nil {
		return snap
	}
	snap.CurrentTeamIndex = t.TeamIndex
	snap.CurrentRound = t.Round
	snap.Scores = copyScores(t.Scores)
	snap.TimeRemaining = t.Remaining
	snap.CurrentCategory = t.Category
	snap.RoundWords = wire.RoundWords{
		Guessed: append([]string(nil), t.Guessed...),
		Skipped: append([]string(nil), t.Skipped...),
	}
	if active, ok := s.state.ActiveTeam(); ok {
		snap.ActiveTeamID = active.ID
	}
	return snap
}

func (s *Session) teams() []engine.Team {
	return append([]engine.Team(nil), s.state.Teams...)
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}

// turnEnded renders the turn summary from the event's capture. An end-turn
// during an active turn advances to the next team in the same transition,
// so the current state already describes the wrong turn.
func (s *Session) turnEnded(ev engine.Event) wire.TurnEnded {
	sum := ev.Summary
	if sum == nil {
		msg := wire.TurnEnded{Type: wire.MsgTurnEnded, TurnSnapshot: s.snapshot()}
		if s.state.Turn != nil {
			msg.LastWord = s.state.Turn.Word
		}
		return msg
	}

	snap := wire.TurnSnapshot{
		CurrentTeamIndex: sum.TeamIndex,
		CurrentRound:     sum.Round,
		Scores:           sum.Scores,
		TimeRemaining:    sum.Remaining,
		CurrentCategory:  sum.Category,
		Teams:            s.teams(),
		RoundWords: wire.RoundWords{
			Guessed: append([]string(nil), sum.Guessed...),
			Skipped: append([]string(nil), sum.Skipped...),
		},
	}
	if sum.TeamIndex >= 0 && sum.TeamIndex < len(s.state.Teams) {
		snap.ActiveTeamID = s.state.Teams[sum.TeamIndex].ID
	}
	return wire.TurnEnded{Type: wire.MsgTurnEnded, TurnSnapshot: snap, LastWord: sum.LastWord}
}

// sendSnapshot answers a state request with whatever the current phase
// calls for.
func (s *Session) sendSnapshot(connID string, out chan any) {
	switch s.state.Phase() {
	case engine.PhaseLobby:
		send(out, wire.GameUpdated{Type: wire.MsgGameUpdated, Teams: s.teams(), Settings: s.state.Settings})
	case engine.PhaseGameOver:
		msg := wire.GameEnded{Type: wire.MsgGameEnded}
		if s.state.Winner != nil {
			msg.Winner = s.state.Winner.Name
		}
		if s.state.Turn != nil {
			msg.FinalScores = copyScores(s.state.Turn.Scores)
		}
		send(out, msg)
	default:
		send(out, wire.GameState{
			Type:         wire.MsgGameState,
			Phase:        string(s.state.Phase()),
			TurnSnapshot: s.snapshot(),
		})
		// The active team's connection also gets the live word back.
		if active, ok := s.state.ActiveTeam(); ok && s.state.Phase() == engine.PhaseTurnActive && s.state.Turn.Word != nil {
			if team, resolved := s.resolver.ResolveTeam(s.code, connID); resolved && team == active.ID {
				send(out, wire.WordToGuess{
					Type:     wire.MsgWordToGuess,
					Word:     s.state.Turn.Word.Word,
					Category: s.state.Turn.Word.Category,
				})
			}
		}
	}
}

// broadcast fans a message out to every registered client. A client whose
// outbox is full is evicted rather than allowed to stall the session.
func (s *Session) broadcast(msg any) {
	for id, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			s.log.Warn("dropping slow client", zap.String("conn", id))
			close(ch)
			delete(s.clients, id)
		}
	}
}

// sendToTeam delivers to every live connection bound to a team.
func (s *Session) sendToTeam(teamID string, msg any) {
	for _, connID := range s.resolver.ConnectionsFor(teamID) {
		if ch, ok := s.clients[connID]; ok {
			send(ch, msg)
		}
	}
}

func send(out chan any, msg any) {
	select {
	case out <- msg:
	default:
	}
}
