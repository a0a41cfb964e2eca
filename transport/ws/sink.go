package ws

import (
	"context"

	"medhub/domain/event"
	"medhub/errors"
)

// Sink is one connection's outbound queue. The fanout worker feeds it
// through Consume; the connection's write pump drains it. A single
// buffered channel keeps per-connection delivery in order.
type Sink struct {
	frames chan Envelope
}

func NewSink(bufferSize int) *Sink {
	return &Sink{frames: make(chan Envelope, bufferSize)}
}

// Consume is called by the fanout worker. It wraps the event into a
// wire frame and hands it to the write pump. When the queue is full
// the event is dropped for this connection: backpressure from one slow
// tab must never stall the broadcast.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	env, err := NewEnvelope(e)
	if err != nil {
		return err
	}
	return s.Send(ctx, env)
}

// Send queues a raw frame, used directly for RPC replies and the
// users:active seed which target only this connection.
func (s *Sink) Send(ctx context.Context, env Envelope) error {
	select {
	case s.frames <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkFull
	}
}

// Frames exposes the queue to the write pump.
func (s *Sink) Frames() <-chan Envelope {
	return s.frames
}
