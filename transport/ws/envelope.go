// Package ws carries hub traffic over one websocket per browser tab:
// named events with JSON payloads, plus a correlated request/response
// pattern for the lock RPCs.
package ws

import (
	"encoding/json"

	"medhub/domain"
	"medhub/domain/event"
)

// Inbound message kinds (client -> server). Outbound kinds are the
// event.Kind constants.
const (
	KindUserJoin        event.Kind = "user:join"
	KindPageChange      event.Kind = "user:pageChange"
	KindInventoryChange event.Kind = "inventory:change"
	KindEditLock        event.Kind = "edit:lock"
	KindEditUnlock      event.Kind = "edit:unlock"

	// KindError answers a malformed request on the offending connection.
	KindError event.Kind = "error"
)

// Envelope is the wire frame. CorrelationID is set on lock RPC requests
// and echoed on their single reply so a client can match the answer to
// its question.
type Envelope struct {
	Event         event.Kind      `json:"event"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps a domain event for the wire.
func NewEnvelope(e event.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: e.Kind(), Payload: payload}, nil
}

type JoinPayload struct {
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username" validate:"required"`
}

type PageChangePayload struct {
	UserID string `json:"userId" validate:"required"`
	Page   string `json:"page" validate:"required"`
}

type InventoryChangePayload struct {
	MedicineID   int64           `json:"medicineId" validate:"required"`
	MedicineData domain.Medicine `json:"medicineData"`
	UserID       string          `json:"userId" validate:"required"`
}

type LockPayload struct {
	DocumentID   string `json:"documentId" validate:"required"`
	DocumentType string `json:"documentType" validate:"required"`
	UserID       string `json:"userId" validate:"required"`
}

type UnlockPayload struct {
	DocumentID string `json:"documentId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
