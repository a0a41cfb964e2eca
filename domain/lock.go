package domain

import "time"

// DocumentType identifies the kind of record an edit lock protects.
type DocumentType string

const (
	DocumentPurchase DocumentType = "purchase"
	DocumentInvoice  DocumentType = "invoice"
	DocumentCustomer DocumentType = "customer"
)

// EditLock is an advisory mutual-exclusion claim on a document id.
// At most one EditLock exists per document id. Ownership is keyed by
// user id, so a user keeps their lock while at least one of their
// sessions is connected.
type EditLock struct {
	DocumentID   string       `json:"documentId"`
	DocumentType DocumentType `json:"documentType"`
	HolderID     string       `json:"holderId"`
	AcquiredAt   time.Time    `json:"acquiredAt"`
	TouchedAt    time.Time    `json:"touchedAt"`
}

// Expired reports whether the lock went untouched longer than ttl.
// A zero ttl means locks never expire.
func (l EditLock) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(l.TouchedAt) > ttl
}

// LockResult is the outcome of an acquire attempt. A denial is a normal
// outcome, not an error: HeldBy tells the caller who to blame.
type LockResult struct {
	Granted bool   `json:"granted"`
	HeldBy  string `json:"heldBy,omitempty"`
}
