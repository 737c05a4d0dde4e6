// Package identity bridges durable team identities and ephemeral transport
// connection identifiers. Connection IDs are reassigned on every reconnect;
// turn order and scoring are keyed on team IDs, and this resolver is the only
// place the two meet. All authorization goes through ResolveTeam.
package identity

import (
	"sync"

	"github.com/jdcb4/word-guessy-online/internal/engine"
)

type Resolver struct {
	mu         sync.RWMutex
	connToTeam map[string]string              // conn ID -> team ID
	teamConns  map[string]map[string]struct{} // team ID -> live conn IDs
	connToGame map[string]string              // conn ID -> game code last joined
}

func NewResolver() *Resolver {
	return &Resolver{
		connToTeam: make(map[string]string),
		teamConns:  make(map[string]map[string]struct{}),
		connToGame: make(map[string]string),
	}
}

// Bind records that connID currently represents teamID within the session at
// code. A team may be bound to more than one connection during a reconnect
// window; all of them receive targeted deliveries.
func (r *Resolver) Bind(code, teamID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindLocked(code, teamID, connID)
}

func (r *Resolver) bindLocked(code, teamID, connID string) {
	if prev, ok := r.connToTeam[connID]; ok && prev != teamID {
		delete(r.teamConns[prev], connID)
	}
	r.connToTeam[connID] = teamID
	conns := r.teamConns[teamID]
	if conns == nil {
		conns = make(map[string]struct{})
		r.teamConns[teamID] = conns
	}
	conns[connID] = struct{}{}
	r.connToGame[connID] = code
}

// Reconcile moves the binding of a replaced connection onto its successor.
// Returns the game code and team the old connection represented, if any.
func (r *Resolver) Reconcile(oldConn, newConn string) (code, teamID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	teamID, bound := r.connToTeam[oldConn]
	code, inGame := r.connToGame[oldConn]
	if !bound || !inGame {
		return "", "", false
	}

	r.dropConnLocked(oldConn)
	r.bindLocked(code, teamID, newConn)
	return code, teamID, true
}

// Identify binds connID to one of teams by claimed ID or, failing that, by
// claimed name. It never mutates the team itself.
func (r *Resolver) Identify(code, connID string, teams []engine.Team, claimedID, claimedName string) (engine.Team, bool) {
	var match *engine.Team
	for i := range teams {
		if claimedID != "" && teams[i].ID == claimedID {
			match = &teams[i]
			break
		}
	}
	if match == nil && claimedName != "" {
		for i := range teams {
			if teams[i].Name == claimedName {
				match = &teams[i]
				break
			}
		}
	}
	if match == nil {
		return engine.Team{}, false
	}

	r.Bind(code, match.ID, connID)
	return *match, true
}

// ResolveTeam reports which team connID currently represents in the session
// at code. The single authoritative lookup for authorization.
func (r *Resolver) ResolveTeam(code, connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.connToGame[connID] != code {
		return "", false
	}
	teamID, ok := r.connToTeam[connID]
	return teamID, ok
}

// GameFor returns the code of the session connID last joined.
func (r *Resolver) GameFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.connToGame[connID]
	return code, ok
}

// ConnectionsFor lists every live connection bound to teamID. Used for
// targeted delivery of the secret word.
func (r *Resolver) ConnectionsFor(teamID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.teamConns[teamID]))
	for c := range r.teamConns[teamID] {
		conns = append(conns, c)
	}
	return conns
}

// DropConn discards the mapping for a closed connection and reports whether
// its team has any connections left.
func (r *Resolver) DropConn(connID string) (teamID string, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	teamID = r.connToTeam[connID]
	r.dropConnLocked(connID)
	return teamID, len(r.teamConns[teamID])
}

func (r *Resolver) dropConnLocked(connID string) {
	if teamID, ok := r.connToTeam[connID]; ok {
		delete(r.teamConns[teamID], connID)
		if len(r.teamConns[teamID]) == 0 {
			delete(r.teamConns, teamID)
		}
	}
	delete(r.connToTeam, connID)
	delete(r.connToGame, connID)
}

// DropTeam discards every mapping for a team that left its session.
func (r *Resolver) DropTeam(teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID := range r.teamConns[teamID] {
		delete(r.connToTeam, connID)
		delete(r.connToGame, connID)
	}
	delete(r.teamConns, teamID)
}

// DropSession discards every mapping pointing at a torn-down session.
func (r *Resolver) DropSession(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID, c := range r.connToGame {
		if c != code {
			continue
		}
		if teamID, ok := r.connToTeam[connID]; ok {
			delete(r.teamConns[teamID], connID)
			if len(r.teamConns[teamID]) == 0 {
				delete(r.teamConns, teamID)
			}
		}
		delete(r.connToTeam, connID)
		delete(r.connToGame, connID)
	}
}
