package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to every subscriber of its concrete type. Unknown
// event types are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case PreviewStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PictureTakenEvent:
		event.Publish(b.dispatcher, e)
	case AllocationFailedEvent:
		event.Publish(b.dispatcher, e)
	case SessionReleasedEvent:
		event.Publish(b.dispatcher, e)
	case AllocatorResetEvent:
		event.Publish(b.dispatcher, e)
	case DeviceEvent:
		event.Publish(b.dispatcher, e)
	case ParametersChangedEvent:
		event.Publish(b.dispatcher, e)
	case MetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter and
// returns an unsubscribe function.
//
//	unsub := bus.Subscribe(func(e PreviewStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PreviewStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PictureTakenEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AllocationFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionReleasedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AllocatorResetEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ParametersChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
