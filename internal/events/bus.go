package events

import (
	"context"

	"nexusprover/internal/platform/logger"
)

// busCapacity bounds the shared channel; a full buffer applies backpressure
// instead of growing without limit
const busCapacity = 100

// Bus fans worker events in to a single consumer over one shared bounded
// channel. Each sender publishes sequentially, so its own events arrive in
// order; events from different senders interleave
type Bus struct {
	ch chan Event
}

// NewBus returns a bus with the standard bounded capacity
func NewBus() *Bus {
	return &Bus{ch: make(chan Event, busCapacity)}
}

// Publish delivers ev unless ctx is done first. Delivery blocks when the
// consumer lags, which is the intended backpressure
func (b *Bus) Publish(ctx context.Context, ev Event) {
	select {
	case b.ch <- ev:
	case <-ctx.Done():
	}
}

// Events returns the consumer side of the bus
func (b *Bus) Events() <-chan Event { return b.ch }

// RunPrinter drains the bus through zerolog until ctx is done. This is the
// headless sink; stderr stays reserved for fatal startup errors
func (b *Bus) RunPrinter(ctx context.Context) error {
	log := logger.Get()
	for {
		select {
		case <-ctx.Done():
			// drain whatever already buffered so shutdown messages land
			for {
				select {
				case ev := <-b.ch:
					b.print(log, ev)
				default:
					return ctx.Err()
				}
			}
		case ev := <-b.ch:
			b.print(log, ev)
		}
	}
}

func (b *Bus) print(log *logger.Logger, ev Event) {
	e := log.WithLevel(ev.Level).
		Str("worker", ev.Worker.String()).
		Str("kind", ev.Kind.String()).
		Time("at", ev.Timestamp)
	if ev.State != StateNone {
		e = e.Str("state", ev.State.String())
	}
	e.Msg(ev.Message)
}
