package runtime

import (
	"log/slog"
	"sync"
	"time"

	"medhub/domain"
)

// LockManager hands out advisory edit locks, at most one per document
// id. First writer wins: a denied acquire is a normal outcome, never a
// transfer. Ownership is keyed by user id, so the lock survives all of
// the holder's tabs except the last one closing.
//
// Locks live in memory for the server process lifetime. Nothing is
// persisted: locks are advisory and a restart legitimately clears them.
type LockManager struct {
	mu    sync.Mutex
	log   *slog.Logger
	locks map[string]domain.EditLock // documentID -> lock
	ttl   time.Duration              // 0 disables expiry
}

func NewLockManager(log *slog.Logger, ttl time.Duration) *LockManager {
	return &LockManager{
		log:   log,
		locks: make(map[string]domain.EditLock),
		ttl:   ttl,
	}
}

// Acquire attempts to claim documentID for userID.
// UNLOCKED -> LOCKED(userID) on success; LOCKED stays put on denial.
// A re-acquire by the current holder is granted idempotently and
// refreshes the TTL clock, so a reloaded tab does not wedge its own
// user out of the document.
func (m *LockManager) Acquire(documentID string, documentType domain.DocumentType, userID string) domain.LockResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if held, ok := m.locks[documentID]; ok {
		if held.HolderID != userID {
			return domain.LockResult{Granted: false, HeldBy: held.HolderID}
		}
		held.TouchedAt = now
		m.locks[documentID] = held
		return domain.LockResult{Granted: true, HeldBy: userID}
	}

	m.locks[documentID] = domain.EditLock{
		DocumentID:   documentID,
		DocumentType: documentType,
		HolderID:     userID,
		AcquiredAt:   now,
		TouchedAt:    now,
	}
	return domain.LockResult{Granted: true, HeldBy: userID}
}

// Release frees documentID if userID is the holder. Releasing someone
// else's lock is a no-op logged as a conflict, not an error; the lock
// stays with its holder.
func (m *LockManager) Release(documentID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.locks[documentID]
	if !ok {
		return false
	}
	if held.HolderID != userID {
		m.log.Warn("release denied, lock held by another user",
			"document_id", documentID,
			"holder_id", held.HolderID,
			"requester_id", userID)
		return false
	}
	delete(m.locks, documentID)
	return true
}

// ReleaseAllFor frees every lock held by userID and returns them.
// Called when the user's last session disconnects: no orphaned lock
// may survive a dead session.
func (m *LockManager) ReleaseAllFor(userID string) []domain.EditLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released []domain.EditLock
	for id, held := range m.locks {
		if held.HolderID == userID {
			released = append(released, held)
			delete(m.locks, id)
		}
	}
	return released
}

// ExpireStale frees locks untouched past the TTL and returns them.
// With a zero TTL this never expires anything and locks live until
// release or disconnect.
func (m *LockManager) ExpireStale(now time.Time) []domain.EditLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []domain.EditLock
	for id, held := range m.locks {
		if held.Expired(now, m.ttl) {
			m.log.Warn("expiring stale edit lock",
				"document_id", id,
				"holder_id", held.HolderID,
				"acquired_at", held.AcquiredAt)
			expired = append(expired, held)
			delete(m.locks, id)
		}
	}
	return expired
}

// Holder reports the current lock on documentID, if any.
func (m *LockManager) Holder(documentID string) (domain.EditLock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.locks[documentID]
	return held, ok
}

// Snapshot returns all held locks, for the debug endpoint.
func (m *LockManager) Snapshot() []domain.EditLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	locks := make([]domain.EditLock, 0, len(m.locks))
	for _, held := range m.locks {
		locks = append(locks, held)
	}
	return locks
}
