// Package runtime holds the hub's coordination state: connected
// sessions, edit locks, and event propagation. It contains no business
// rules; the REST layer owns those.
package runtime

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"medhub/contract"
	"medhub/domain"
)

type Set map[string]struct{}

// Registry is the authoritative set of currently-connected sessions.
// One entry per browser tab; a user with several tabs has several
// sessions. Everything here is in-memory only and starts empty on
// every process start. The maps are guarded by an RWMutex because the
// transport, the workers and the REST layer all touch them.
type Registry struct {
	mu           sync.RWMutex
	log          *slog.Logger
	sessions     map[string]domain.Session     // sessionID -> session
	sinks        map[string]contract.EventSink // sessionID -> delivery channel
	userSessions map[string]Set                // userID -> session ids
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:          log,
		sessions:     make(map[string]domain.Session),
		sinks:        make(map[string]contract.EventSink),
		userSessions: make(map[string]Set),
	}
}

// Join registers a session and its sink. Idempotent per session id:
// a repeated join for the same id overwrites the metadata and sink
// without duplicating presence. A repeated join that renames the
// session's user moves the id between the user sets, so the old user's
// presence count stays accurate. Returns whether the session id was
// new, so the caller can count connections without drift.
func (r *Registry) Join(session domain.Session, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, known := r.sessions[session.ID]
	if known && existing.UserID != session.UserID {
		if ids, ok := r.userSessions[existing.UserID]; ok {
			delete(ids, session.ID)
			if len(ids) == 0 {
				delete(r.userSessions, existing.UserID)
			}
		}
	}

	r.sessions[session.ID] = session
	r.sinks[session.ID] = sink

	if _, ok := r.userSessions[session.UserID]; !ok {
		r.userSessions[session.UserID] = make(Set)
	}
	r.userSessions[session.UserID][session.ID] = struct{}{}
	return !known
}

// Leave removes a session on disconnect. Returns the removed session,
// whether it existed, and whether it was the user's last session.
// The caller uses lastOfUser to trigger lock cleanup: locks are keyed
// by user, so closing one of several tabs must not release them.
func (r *Registry) Leave(sessionID string) (domain.Session, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return domain.Session{}, false, false
	}
	delete(r.sessions, sessionID)
	delete(r.sinks, sessionID)

	lastOfUser := false
	if ids, ok := r.userSessions[session.UserID]; ok {
		delete(ids, sessionID)
		// No empty sets left behind, same as room cleanup.
		if len(ids) == 0 {
			delete(r.userSessions, session.UserID)
			lastOfUser = true
		}
	}
	return session, true, lastOfUser
}

// UpdatePage is presence bookkeeping only; no broadcast happens here.
func (r *Registry) UpdatePage(sessionID, page string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	session.CurrentPage = page
	r.sessions[sessionID] = session
	return true
}

// ListActive returns a snapshot of connected sessions excluding every
// session of the given user. Used to seed a new client's "who else is
// online" view, which must never include the caller.
func (r *Registry) ListActive(excludingUserID string) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(lo.Values(r.sessions), func(s domain.Session, _ int) bool {
		return s.UserID != excludingUserID
	})
}

// Sinks returns the delivery channels of every connected session except
// the given one. An empty exceptSessionID returns all sinks.
func (r *Registry) Sinks(exceptSessionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sinks))
	for id, sink := range r.sinks {
		if id == exceptSessionID {
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

// Sink resolves a single session's delivery channel.
func (r *Registry) Sink(sessionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[sessionID]
	return sink, ok
}

// Snapshot returns all connected sessions, for the debug endpoint.
func (r *Registry) Snapshot() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions)
}
