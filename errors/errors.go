package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrUnknownEvent      = fmt.Errorf("unknown event kind")
	ErrInvalidPayload    = fmt.Errorf("invalid payload")
	ErrJoinRequired      = fmt.Errorf("first message must be user:join")
	ErrNotFound          = fmt.Errorf("not found")
	ErrInsufficientStock = fmt.Errorf("insufficient stock")
	ErrRequestTimeout    = fmt.Errorf("request timed out")
	ErrSinkFull          = fmt.Errorf("connection sink full")
)
