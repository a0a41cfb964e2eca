package runtime

import (
	"log/slog"
	"time"

	"medhub/contract"
	"medhub/domain"
	"medhub/domain/event"
	"medhub/observability"
)

// Hub ties the registry, the lock manager and the broadcast pipeline
// together. Producers call Publish and move on; the fanout worker
// drains the channel and delivers to per-connection sinks. Publish
// never blocks: when the channel is full the event is dropped and
// counted.
type Hub struct {
	log      *slog.Logger
	registry contract.IRegistry
	locks    contract.ILockManager
	stats    *observability.StatsManager
	events   chan contract.Outbound
}

func NewHub(log *slog.Logger, registry contract.IRegistry, locks contract.ILockManager,
	stats *observability.StatsManager, bufferSize int) *Hub {
	return &Hub{
		log:      log,
		registry: registry,
		locks:    locks,
		stats:    stats,
		events:   make(chan contract.Outbound, bufferSize),
	}
}

// Events exposes the broadcast channel for the fanout worker.
func (h *Hub) Events() <-chan contract.Outbound {
	return h.events
}

// Publish hands an event to the fanout pipeline. originSessionID is
// excluded from delivery so the actor doesn't see an echo of their own
// change; empty delivers to everyone.
func (h *Hub) Publish(e event.DomainEvent, originSessionID string) {
	select {
	case h.events <- contract.Outbound{Event: e, OriginSessionID: originSessionID}:
		h.stats.EventPublished()
	default:
		h.stats.EventDropped()
		h.log.Warn("event channel full, dropping event", "kind", e.Kind())
	}
}

// Join registers a new session, announces it to everyone else, and
// returns the presence snapshot used to seed the new client's
// "who else is online" view.
func (h *Hub) Join(session domain.Session, sink contract.EventSink) []domain.Session {
	// A repeated join of a known session id must not drift the
	// active-session counter; Leave only decrements once.
	if h.registry.Join(session, sink) {
		h.stats.SessionConnected()
	}

	h.Publish(event.UserJoined{
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		At:        session.ConnectedAt,
	}, session.ID)

	h.log.Info("session joined",
		"session_id", session.ID,
		"user_id", session.UserID,
		"username", session.Username)

	return h.registry.ListActive(session.UserID)
}

// Leave handles a transport-detected disconnect. When the user's last
// session goes away, every lock they held is released and announced,
// so no orphaned lock survives a crash or a closed tab.
func (h *Hub) Leave(sessionID string) {
	session, ok, lastOfUser := h.registry.Leave(sessionID)
	if !ok {
		return
	}
	h.stats.SessionDisconnected()

	if lastOfUser {
		for _, lock := range h.locks.ReleaseAllFor(session.UserID) {
			h.Publish(event.EditReleased{DocumentID: lock.DocumentID}, "")
		}
	}

	h.Publish(event.UserLeft{
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		At:        time.Now().UTC(),
	}, sessionID)

	h.log.Info("session left",
		"session_id", sessionID,
		"user_id", session.UserID,
		"last_of_user", lastOfUser)
}

// PageChange updates presence metadata. Local bookkeeping only.
func (h *Hub) PageChange(sessionID, page string) {
	if !h.registry.UpdatePage(sessionID, page) {
		h.log.Debug("page change for unknown session", "session_id", sessionID)
	}
}

// AcquireLock attempts an edit lock for userID and announces a grant
// to the other sessions. A denial is returned to the caller as a
// normal result, never broadcast.
func (h *Hub) AcquireLock(originSessionID, documentID string, documentType domain.DocumentType, userID string) domain.LockResult {
	result := h.locks.Acquire(documentID, documentType, userID)
	if result.Granted {
		h.Publish(event.EditLocked{
			DocumentID:   documentID,
			DocumentType: documentType,
			UserID:       userID,
		}, originSessionID)
	}
	return result
}

// ReleaseLock frees an edit lock if userID holds it and announces the
// release. An unauthorized release stays a silent no-op for the caller.
func (h *Hub) ReleaseLock(originSessionID, documentID, userID string) bool {
	released := h.locks.Release(documentID, userID)
	if released {
		h.Publish(event.EditReleased{DocumentID: documentID}, originSessionID)
	}
	return released
}

// SweepLocks expires stale locks and announces each release. Driven by
// the janitor worker; a zero TTL makes this a no-op.
func (h *Hub) SweepLocks(now time.Time) int {
	expired := h.locks.ExpireStale(now)
	for _, lock := range expired {
		h.Publish(event.EditReleased{DocumentID: lock.DocumentID}, "")
	}
	return len(expired)
}
