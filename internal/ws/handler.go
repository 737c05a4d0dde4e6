// Package ws bridges websocket connections to game sessions. Each connection
// gets a uuid identity, a buffered outbox drained by a single writer
// goroutine, and a reader loop that routes validated messages to the hub or
// to the connection's current session.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdcb4/word-guessy-online/internal/hub"
	"github.com/jdcb4/word-guessy-online/internal/identity"
	"github.com/jdcb4/word-guessy-online/internal/session"
	"github.com/jdcb4/word-guessy-online/internal/wire"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, resolver *identity.Resolver, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan any, 32)
		clog := log.With(zap.String("conn", connID))

		c := &client{
			connID:   connID,
			out:      out,
			hub:      h,
			resolver: resolver,
			log:      clog,
		}
		defer c.leave()

		// Writer goroutine. It owns all writes; everyone else talks to the
		// connection through the outbox. The session closes the outbox on
		// teardown, which closes the socket and unblocks the reader.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusNormalClosure, "game over")
						return
					}
					payload, err := json.Marshal(msg)
					if err != nil {
						clog.Error("marshal outbound message", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-writeCtx.Done():
					// The reader has returned. The session closing the
					// outbox is the usual exit; this covers connections
					// whose outbox was never registered anywhere.
					return
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm wire.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.reply(wire.NewError("Internal", "bad json"))
				continue
			}
			if err := cm.Validate(); err != nil {
				c.reply(wire.NewError("Internal", err.Error()))
				continue
			}

			c.dispatch(cm)
		}
	}
}

// client is the per-connection routing state. Only the reader loop touches
// it, so no locking.
type client struct {
	connID   string
	out      chan any
	hub      *hub.Hub
	resolver *identity.Resolver
	sess     *session.Session
	log      *zap.Logger
}

func (c *client) dispatch(m wire.ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic dispatching client message", zap.Any("panic", r), zap.String("type", m.Type))
			c.reply(wire.NewError("Internal", "internal error"))
		}
	}()

	switch m.Type {
	case wire.MsgHostGame:
		c.hostGame(m)

	case wire.MsgRegisterPlayer:
		c.registerPlayer(m)

	case wire.MsgJoinTeam:
		sess := c.lookup(m.Code)
		if sess == nil {
			return
		}
		c.sess = sess
		c.post(sess, session.JoinTeam{ConnID: c.connID, Outbox: c.out, Name: m.TeamName})

	case wire.MsgIdentifyTeam:
		sess := c.lookup(m.Code)
		if sess == nil {
			return
		}
		c.sess = sess
		c.post(sess, session.Identify{ConnID: c.connID, Outbox: c.out, TeamID: m.TeamID, TeamName: m.TeamName})

	case wire.MsgJoinRoom:
		sess := c.lookup(m.Code)
		if sess == nil {
			return
		}
		c.sess = sess
		c.post(sess, session.Join{ConnID: c.connID, Outbox: c.out})

	case wire.MsgGetGameState:
		sess := c.current(m.Code)
		if sess == nil {
			return
		}
		c.post(sess, session.GetSnapshot{ConnID: c.connID, Outbox: c.out})

	default:
		// Validated game actions all route to the current session.
		sess := c.current(m.Code)
		if sess == nil {
			return
		}
		c.post(sess, session.FromClient{ConnID: c.connID, Outbox: c.out, Msg: m})
	}
}

func (c *client) hostGame(m wire.ClientMessage) {
	if c.sess != nil {
		c.reply(wire.NewError("GameInProgress", "connection already belongs to a game"))
		return
	}

	reply := make(chan hub.CreateResult, 1)
	c.hub.Inbox() <- hub.CreateSession{HostName: m.TeamName, Settings: m.Settings, ConnID: c.connID, Outbox: c.out, Reply: reply}
	res := <-reply
	if res.Err != nil {
		c.log.Error("create session", zap.Error(res.Err))
		c.reply(wire.NewError("Internal", "could not create game"))
		return
	}

	c.sess = res.Session
	c.reply(wire.GameCreated{Type: wire.MsgGameCreated, Code: res.Code, TeamID: res.HostTeamID})
}

// registerPlayer moves a team's identity from a dead connection onto this
// one, then rejoins the room so broadcasts resume.
func (c *client) registerPlayer(m wire.ClientMessage) {
	code, teamID, ok := c.resolver.Reconcile(m.PreviousID, c.connID)
	if !ok {
		c.reply(wire.NewError("GameNotFound", "no session for that player id"))
		return
	}

	sess := c.lookup(code)
	if sess == nil {
		return
	}
	c.sess = sess
	c.post(sess, session.Identify{ConnID: c.connID, Outbox: c.out, TeamID: teamID})
	c.post(sess, session.Join{ConnID: c.connID, Outbox: c.out})
}

// current picks the session for a game action: the one this connection is
// already in, falling back to an explicit code.
func (c *client) current(code string) *session.Session {
	if c.sess != nil {
		return c.sess
	}
	if code == "" {
		c.reply(wire.NewError("GameNotFound", "not in a game"))
		return nil
	}
	return c.lookup(code)
}

func (c *client) lookup(code string) *session.Session {
	reply := make(chan *session.Session, 1)
	c.hub.Inbox() <- hub.GetSession{Code: code, Reply: reply}
	sess := <-reply
	if sess == nil {
		c.reply(wire.NewError("GameNotFound", "game not found"))
	}
	return sess
}

func (c *client) post(sess *session.Session, msg session.Msg) {
	select {
	case sess.Inbox() <- msg:
	case <-time.After(writeTimeout):
		c.log.Warn("session inbox stalled, dropping message")
	}
}

func (c *client) reply(msg any) {
	// The session closes the outbox on teardown; a reply racing that close
	// is dropped with the rest of the connection.
	defer func() { _ = recover() }()
	select {
	case c.out <- msg:
	default:
	}
}

func (c *client) leave() {
	if c.sess == nil {
		return
	}
	select {
	case c.sess.Inbox() <- session.Disconnect{ConnID: c.connID}:
	case <-time.After(writeTimeout):
	}
}
