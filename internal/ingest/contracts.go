package ingest

import "github.com/tinytelemetry/throwscope/internal/model"

// EventSink receives framed events in arrival order.
type EventSink interface {
	Dispatch(model.LogEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(model.LogEvent)

// Dispatch implements EventSink.
func (f EventSinkFunc) Dispatch(ev model.LogEvent) { f(ev) }
