package workers

import (
	"context"
	"log/slog"
	"time"

	"medhub/contract"
	"medhub/observability"
)

// EventFanout drains the hub's broadcast channel and delivers each
// event to every connected session's sink except the originator.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries; per-connection ordering holds because each
// sink is a single buffered channel. EventFanout is not a message
// broker: the canonical state lives behind the REST layer.
type EventFanout struct {
	Log         *slog.Logger
	Events      <-chan contract.Outbound
	registry    contract.IRegistry
	stats       *observability.StatsManager
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan contract.Outbound,
	registry contract.IRegistry, stats *observability.StatsManager,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		Log:         log,
		Events:      events,
		registry:    registry,
		stats:       stats,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case out := <-w.Events:
			w.Fanout(ctx, out)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every sink but the origin's. A slow or
// full sink drops the event for that connection only; the broadcaster
// never blocks or retries on behalf of a lagging client.
func (w *EventFanout) Fanout(ctx context.Context, out contract.Outbound) {
	sinks := w.registry.Sinks(out.OriginSessionID)
	for _, sink := range sinks {
		deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(deliveryCtx, out.Event); err != nil {
			w.stats.EventDropped()
			w.Log.Debug("event dropped for slow sink", "kind", out.Event.Kind(), "error", err)
		} else {
			w.stats.EventDelivered()
		}
		cancel()
	}
}
