//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"medhub/domain"
	"medhub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connected client's delivery channel. Consume must
// never block longer than the context allows; a full sink drops.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the authoritative set of connected sessions.
type IRegistry interface {
	Join(session domain.Session, sink EventSink) bool
	Leave(sessionID string) (domain.Session, bool, bool)
	UpdatePage(sessionID, page string) bool
	ListActive(excludingUserID string) []domain.Session
	Sinks(exceptSessionID string) []EventSink
	Sink(sessionID string) (EventSink, bool)
}

// ILockManager hands out advisory edit locks keyed by document id.
type ILockManager interface {
	Acquire(documentID string, documentType domain.DocumentType, userID string) domain.LockResult
	Release(documentID, userID string) bool
	ReleaseAllFor(userID string) []domain.EditLock
	ExpireStale(now time.Time) []domain.EditLock
	Holder(documentID string) (domain.EditLock, bool)
}

// Publisher is the producer side of the broadcaster: fire-and-forget,
// never blocks, never errors. originSessionID suppresses the echo to
// the connection that caused the event; empty means deliver to all.
type Publisher interface {
	Publish(e event.DomainEvent, originSessionID string)
}

// Outbound is one event queued for fanout together with the session
// that produced it, which is excluded from delivery.
type Outbound struct {
	Event           event.DomainEvent
	OriginSessionID string
}
