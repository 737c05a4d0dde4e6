// Package session runs one actor goroutine per live game. All mutation of a
// game's state flows through the actor's inbox, so handlers for the same
// session never interleave; sessions stay independent of each other.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdcb4/word-guessy-online/internal/engine"
	"github.com/jdcb4/word-guessy-online/internal/identity"
	"github.com/jdcb4/word-guessy-online/internal/wire"
)

type Msg interface{ isSessionMsg() }

// Join registers a connection's outbox for broadcasts and resends the
// phase-appropriate snapshot (the join-room flow).
type Join struct {
	ConnID string
	Outbox chan any
}

// JoinTeam appends a new team to the roster.
type JoinTeam struct {
	ConnID string
	Outbox chan any
	Name   string
}

// Identify binds a connection to an existing team by claimed ID or name.
type Identify struct {
	ConnID   string
	Outbox   chan any
	TeamID   string
	TeamName string
}

// FromClient carries a validated game action.
type FromClient struct {
	ConnID string
	Outbox chan any
	Msg    wire.ClientMessage
}

// GetSnapshot answers get-game-state.
type GetSnapshot struct {
	ConnID string
	Outbox chan any
}

// Disconnect reports that a transport connection is gone.
type Disconnect struct {
	ConnID string
}

type timerTick struct {
	gen uint64
}

// GetState is test-only: reflect internal state without data races.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isSessionMsg()        {}
func (JoinTeam) isSessionMsg()    {}
func (Identify) isSessionMsg()    {}
func (FromClient) isSessionMsg()  {}
func (GetSnapshot) isSessionMsg() {}
func (Disconnect) isSessionMsg()  {}
func (timerTick) isSessionMsg()   {}
func (GetState) isSessionMsg()    {}
func (Shutdown) isSessionMsg()    {}

type View struct {
	Phase      engine.Phase
	NumClients int
	State      engine.State
}

type Session struct {
	code     string
	inbox    chan Msg
	state    engine.State
	clients  map[string]chan any
	resolver *identity.Resolver
	onRemove func(code string)
	log      *zap.Logger

	timerGen  uint64
	timerStop chan struct{}

	lastActive atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, code string, initial engine.State, resolver *identity.Resolver, onRemove func(string), log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		code:     code,
		inbox:    make(chan Msg, 64),
		state:    initial,
		clients:  make(map[string]chan any),
		resolver: resolver,
		onRemove: onRemove,
		log:      log.With(zap.String("game", code)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.touch()

	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string { return s.code }

// IdleFor reports how long ago the session last saw client activity.
func (s *Session) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActive.Load()))
}

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return

		case m := <-s.inbox:
			if s.handle(m) {
				return
			}
		}
	}
}

// handle processes one message to completion; the return value reports
// whether the session tore itself down.
func (s *Session) handle(m Msg) (done bool) {
	defer func() {
		// An unexpected fault must not take the process down with it; the
		// offending message is dropped and the session keeps serving.
		if r := recover(); r != nil {
			s.log.Error("panic in session handler", zap.Any("panic", r))
		}
	}()

	switch msg := m.(type) {
	case Join:
		s.touch()
		s.clients[msg.ConnID] = msg.Outbox
		s.sendSnapshot(msg.ConnID, msg.Outbox)

	case JoinTeam:
		s.touch()
		team := engine.Team{ID: uuid.NewString(), Name: msg.Name}
		events, next, err := engine.Apply(s.state, engine.Command{Type: engine.CmdJoinTeam, Team: team})
		if err != nil {
			send(msg.Outbox, wire.NewError(engine.ErrorKind(err), err.Error()))
			return false
		}
		s.state = next
		s.clients[msg.ConnID] = msg.Outbox
		s.resolver.Bind(s.code, team.ID, msg.ConnID)
		send(msg.Outbox, wire.GameJoined{
			Type:     wire.MsgGameJoined,
			Code:     s.code,
			TeamID:   team.ID,
			TeamName: team.Name,
			Teams:    s.teams(),
		})
		return s.applyEvents(events)

	case Identify:
		s.touch()
		team, ok := s.resolver.Identify(s.code, msg.ConnID, s.state.Teams, msg.TeamID, msg.TeamName)
		if !ok {
			send(msg.Outbox, wire.NewError("GameNotFound", "no matching team"))
			return false
		}
		s.clients[msg.ConnID] = msg.Outbox
		send(msg.Outbox, wire.TeamIdentified{Type: wire.MsgTeamIdentified, TeamID: team.ID, TeamName: team.Name})

		// A re-identified active team gets the in-flight word back.
		if active, ok := s.state.ActiveTeam(); ok && active.ID == team.ID && s.state.Phase() == engine.PhaseTurnActive && s.state.Turn.Word != nil {
			send(msg.Outbox, wire.WordToGuess{
				Type:     wire.MsgWordToGuess,
				Word:     s.state.Turn.Word.Word,
				Category: s.state.Turn.Word.Category,
			})
		}

	case FromClient:
		s.touch()
		return s.handleAction(msg)

	case GetSnapshot:
		s.touch()
		s.sendSnapshot(msg.ConnID, msg.Outbox)

	case Disconnect:
		return s.handleDisconnect(msg.ConnID)

	case timerTick:
		// Stale ticks from a cancelled countdown are dropped before they
		// can touch state.
		if s.timerStop == nil || msg.gen != s.timerGen {
			return false
		}
		events, next, err := engine.Apply(s.state, engine.Command{Type: engine.CmdTimerTick})
		if err != nil {
			return false
		}
		s.state = next
		return s.applyEvents(events)

	case GetState:
		msg.Reply <- View{Phase: s.state.Phase(), NumClients: len(s.clients), State: s.state}

	case Shutdown:
		s.teardown()
		return true
	}
	return false
}

func (s *Session) handleAction(msg FromClient) (done bool) {
	cmd, ok := toCommand(msg.Msg)
	if !ok {
		send(msg.Outbox, wire.NewError("Internal", "unknown action"))
		return false
	}

	actor, resolved := s.resolver.ResolveTeam(s.code, msg.ConnID)
	if !resolved {
		send(msg.Outbox, wire.NewError("Unauthorized", "connection is not bound to a team"))
		return false
	}
	cmd.Actor = actor

	events, next, err := engine.Apply(s.state, cmd)
	if err != nil {
		s.log.Debug("rejected action",
			zap.String("action", string(cmd.Type)),
			zap.String("actor", actor),
			zap.Error(err))
		send(msg.Outbox, wire.NewError(engine.ErrorKind(err), err.Error()))
		return false
	}
	s.state = next
	return s.applyEvents(events)
}

func toCommand(m wire.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case wire.MsgStartGame:
		return engine.Command{Type: engine.CmdStartGame}, true
	case wire.MsgStartTurn:
		return engine.Command{Type: engine.CmdStartTurn}, true
	case wire.MsgWordGuessed:
		return engine.Command{Type: engine.CmdGuessWord, Word: m.Word}, true
	case wire.MsgWordSkipped:
		return engine.Command{Type: engine.CmdSkipWord, Word: m.Word}, true
	case wire.MsgEndTurn:
		return engine.Command{Type: engine.CmdEndTurn}, true
	case wire.MsgUpdateSettings:
		if m.Settings == nil {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdUpdateSettings, Settings: *m.Settings}, true
	default:
		return engine.Command{}, false
	}
}

func (s *Session) handleDisconnect(connID string) (done bool) {
	// Closing the outbox releases the connection's writer goroutine.
	if ch, ok := s.clients[connID]; ok {
		close(ch)
		delete(s.clients, connID)
	}

	teamID, remaining := s.resolver.DropConn(connID)
	if teamID == "" || remaining > 0 {
		// Either an unbound spectator, or the team still has a live
		// connection (reconnect window). Roster untouched.
		return false
	}

	if teamID == s.state.HostTeamID {
		s.log.Info("host disconnected, ending game")
		s.broadcast(wire.GameEnded{Type: wire.MsgGameEnded, Message: "Host disconnected"})
		s.teardown()
		return true
	}

	events, next, err := engine.Apply(s.state, engine.Command{Type: engine.CmdRemoveTeam, Team: engine.Team{ID: teamID}})
	if err != nil {
		return false
	}
	s.state = next
	s.resolver.DropTeam(teamID)
	return s.applyEvents(events)
}

// applyEvents turns engine events into outbound messages and timer control.
// Timer cancellation happens before the corresponding broadcast so no tick
// can land between a turn ending and the next turn's state.
func (s *Session) applyEvents(events []engine.Event) (done bool) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtRosterChanged, engine.EvtSettingsChanged:
			s.broadcast(wire.GameUpdated{Type: wire.MsgGameUpdated, Teams: s.teams(), Settings: s.state.Settings})

		case engine.EvtGameStarted:
			s.broadcast(wire.GameStarted{Type: wire.MsgGameStarted})

		case engine.EvtTurnReady:
			s.stopTimer()
			s.broadcast(wire.TurnReady{Type: wire.MsgTurnReady, TurnSnapshot: s.snapshot()})

		case engine.EvtTurnStarted:
			s.broadcast(wire.TurnStarted{Type: wire.MsgTurnStarted, TurnSnapshot: s.snapshot()})
			s.startTimer()

		case engine.EvtWordAssigned:
			if active, ok := s.state.ActiveTeam(); ok && ev.Word != nil {
				s.sendToTeam(active.ID, wire.WordToGuess{
					Type:     wire.MsgWordToGuess,
					Word:     ev.Word.Word,
					Category: ev.Word.Category,
				})
			}

		case engine.EvtStateUpdated:
			s.broadcast(wire.StateUpdate{Type: wire.MsgStateUpdate, TurnSnapshot: s.snapshot()})

		case engine.EvtTurnEnded:
			s.stopTimer()
			s.broadcast(s.turnEnded(ev))

		case engine.EvtGameEnded:
			s.stopTimer()
			msg := wire.GameEnded{Type: wire.MsgGameEnded}
			if s.state.Winner != nil {
				msg.Winner = s.state.Winner.Name
			}
			if s.state.Turn != nil {
				msg.FinalScores = copyScores(s.state.Turn.Scores)
			}
			s.log.Info("game over", zap.String("winner", msg.Winner))
			s.broadcast(msg)
			s.teardown()
			return true
		}
	}
	return false
}

func (s *Session) teardown() {
	s.stopTimer()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.resolver.DropSession(s.code)
	if s.onRemove != nil {
		s.onRemove(s.code)
	}
	s.cancel()
}
