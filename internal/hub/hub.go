// Package hub owns the registry of live game sessions. A single actor
// goroutine serializes creation, lookup, and removal, so code collisions
// cannot race.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdcb4/word-guessy-online/internal/engine"
	"github.com/jdcb4/word-guessy-online/internal/identity"
	"github.com/jdcb4/word-guessy-online/internal/session"
	"github.com/jdcb4/word-guessy-online/internal/words"
)

const codeLength = 4

// DefaultSettings are what a freshly hosted game starts with; the host can
// change them before starting.
func DefaultSettings(categories []string) engine.Settings {
	return engine.Settings{
		Rounds:       3,
		TurnDuration: 30,
		Categories:   append([]string(nil), categories...),
		Difficulties: []string{"easy"},
		MaxTeams:     4,
	}
}

type HubMsg interface{ isHubMsg() }

// CreateSession allocates a code, seeds the game with the hosting team, and
// spawns its actor. The reply carries everything the transport needs to ack
// the host.
type CreateSession struct {
	HostName string
	Settings *engine.Settings // optional; absent fields take defaults
	ConnID   string
	Outbox   chan any
	Reply    chan CreateResult
}

type CreateResult struct {
	Code       string
	HostTeamID string
	Session    *session.Session
	Err        error
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type RemoveSession struct {
	Code string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	resolver *identity.Resolver
	corpus   []words.Word
	log      *zap.Logger
	idleTTL  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, resolver *identity.Resolver, corpus []words.Word, idleTTL time.Duration, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		resolver: resolver,
		corpus:   corpus,
		log:      log,
		idleTTL:  idleTTL,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	if idleTTL > 0 {
		go h.reaperLoop()
	}
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg)

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // may be nil

			case RemoveSession:
				if sess := h.sessions[msg.Code]; sess != nil {
					delete(h.sessions, msg.Code)
					h.log.Info("session removed", zap.String("game", msg.Code))
				}

			case listStale:
				var out []*session.Session
				for _, sess := range h.sessions {
					if sess.IdleFor() > h.idleTTL {
						out = append(out, sess)
					}
				}
				msg.Reply <- out

			case ShutdownHub:
				for _, sess := range h.sessions {
					select {
					case sess.Inbox() <- session.Shutdown{}:
					default:
					}
				}
				clear(h.sessions)
				h.cancel()
			}
		}
	}
}

func (h *Hub) create(msg CreateSession) CreateResult {
	code, err := h.freshCode()
	if err != nil {
		return CreateResult{Err: err}
	}

	host := engine.Team{ID: uuid.NewString(), Name: msg.HostName}
	settings := DefaultSettings(words.Categories(h.corpus))
	if msg.Settings != nil {
		settings = mergeSettings(settings, *msg.Settings)
	}
	state := engine.NewState(host, settings, h.corpus)

	sess := session.New(h.ctx, code, state, h.resolver, h.removeLater, h.log)
	h.sessions[code] = sess

	h.resolver.Bind(code, host.ID, msg.ConnID)
	sess.Inbox() <- session.Join{ConnID: msg.ConnID, Outbox: msg.Outbox}

	h.log.Info("session created", zap.String("game", code), zap.String("host", msg.HostName))
	return CreateResult{Code: code, HostTeamID: host.ID, Session: sess}
}

// removeLater is handed to sessions as their teardown callback. It posts
// back to the hub inbox instead of touching the map directly because it
// runs on the session's goroutine.
func (h *Hub) removeLater(code string) {
	select {
	case h.inbox <- RemoveSession{Code: code}:
	case <-h.ctx.Done():
	}
}

// codeAttempts bounds collision retries; the space is 26^4, so exhausting
// the bound means the registry is effectively full.
const codeAttempts = 1000

func (h *Hub) freshCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("game code space exhausted")
}

// mergeSettings overlays the host's requested settings onto the defaults;
// fields the host left empty keep their default value.
func mergeSettings(base, req engine.Settings) engine.Settings {
	if req.Rounds > 0 {
		base.Rounds = req.Rounds
	}
	if req.TurnDuration > 0 {
		base.TurnDuration = req.TurnDuration
	}
	if len(req.Categories) > 0 {
		base.Categories = req.Categories
	}
	if len(req.Difficulties) > 0 {
		base.Difficulties = req.Difficulties
	}
	if req.MaxTeams > 0 {
		base.MaxTeams = req.MaxTeams
	}
	return base
}

var generateCode = func() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// reaperLoop shuts down sessions nobody has touched for idleTTL. The actual
// teardown happens inside the session actor; the hub only nudges it.
func (h *Hub) reaperLoop() {
	ticker := time.NewTicker(h.idleTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			stale := h.staleSessions()
			for _, sess := range stale {
				h.log.Info("reaping idle session", zap.String("game", sess.Code()))
				select {
				case sess.Inbox() <- session.Shutdown{}:
				default:
				}
			}
		}
	}
}

// staleSessions snapshots the candidates through the actor so the map is
// never read concurrently.
func (h *Hub) staleSessions() []*session.Session {
	reply := make(chan []*session.Session, 1)
	select {
	case h.inbox <- listStale{Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case out := <-reply:
		return out
	case <-h.ctx.Done():
		return nil
	}
}

type listStale struct {
	Reply chan []*session.Session
}

func (listStale) isHubMsg() {}
