// Package event defines the closed set of domain events the hub
// broadcasts to connected clients. Events are immutable notification
// values: fire-and-forget, at-most-once per connection, never persisted.
// Authoritative state lives behind the REST layer; a client that missed
// an event re-fetches instead of replaying.
package event

import (
	"time"

	"medhub/domain"
)

// Kind is the wire name of an event. Using a closed set of typed
// constants instead of raw strings keeps handling exhaustive.
type Kind string

const (
	KindUserJoined       Kind = "user:joined"
	KindUserLeft         Kind = "user:left"
	KindActiveUsers      Kind = "users:active"
	KindInventoryUpdated Kind = "inventory:updated"
	KindInventoryLow     Kind = "inventory:lowStock"
	KindEditLocked       Kind = "edit:locked"
	KindEditReleased     Kind = "edit:release"
	KindPaymentReceived  Kind = "payment:received"
	KindSaleCompleted    Kind = "sale:completed"

	// RPC replies, delivered only to the requesting connection.
	KindLockResult   Kind = "edit:lockResult"
	KindUnlockResult Kind = "edit:unlockResult"
)

type DomainEvent interface {
	Kind() Kind
}

type UserJoined struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	At        time.Time `json:"at"`
}

func (UserJoined) Kind() Kind { return KindUserJoined }

type UserLeft struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	At        time.Time `json:"at"`
}

func (UserLeft) Kind() Kind { return KindUserLeft }

// ActiveUsers seeds a freshly-connected client with everyone already
// online. Delivered only to the new connection.
type ActiveUsers struct {
	Users []domain.Session `json:"users"`
}

func (ActiveUsers) Kind() Kind { return KindActiveUsers }

type InventoryUpdated struct {
	MedicineID int64           `json:"medicineId"`
	Medicine   domain.Medicine `json:"medicine"`
	UserID     string          `json:"userId"`
}

func (InventoryUpdated) Kind() Kind { return KindInventoryUpdated }

type InventoryLowStock struct {
	MedicineID   int64  `json:"medicineId"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorderLevel"`
}

func (InventoryLowStock) Kind() Kind { return KindInventoryLow }

type EditLocked struct {
	DocumentID   string              `json:"documentId"`
	DocumentType domain.DocumentType `json:"documentType"`
	UserID       string              `json:"userId"`
}

func (EditLocked) Kind() Kind { return KindEditLocked }

type EditReleased struct {
	DocumentID string `json:"documentId"`
}

func (EditReleased) Kind() Kind { return KindEditReleased }

type PaymentReceived struct {
	PaymentID int64   `json:"paymentId"`
	Customer  string  `json:"customer"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	UserID    string  `json:"userId"`
}

func (PaymentReceived) Kind() Kind { return KindPaymentReceived }

type SaleCompleted struct {
	SaleID    int64   `json:"saleId"`
	InvoiceNo string  `json:"invoiceNo"`
	Total     float64 `json:"total"`
	UserID    string  `json:"userId"`
}

func (SaleCompleted) Kind() Kind { return KindSaleCompleted }

// LockReply answers an edit:lock request on the requesting connection.
type LockReply struct {
	DocumentID string `json:"documentId"`
	Granted    bool   `json:"granted"`
	HeldBy     string `json:"heldBy,omitempty"`
}

func (LockReply) Kind() Kind { return KindLockResult }

// UnlockReply answers an edit:unlock request on the requesting connection.
type UnlockReply struct {
	DocumentID string `json:"documentId"`
	Released   bool   `json:"released"`
}

func (UnlockReply) Kind() Kind { return KindUnlockResult }
