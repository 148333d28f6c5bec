package progress

import "context"

// Sink receives batches of events from a Hub. A batch is shared with the
// other sinks and must be treated as read-only. Consume should return once
// ctx expires.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter accepts single events. The pipeline only sees this, never the Hub.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
