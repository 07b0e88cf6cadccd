package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T to ch for huma's SSE loop.
// Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll forwards every known event type to ch and returns a function
// that removes all of the subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[PreviewStateChangedEvent](bus, ch),
		SubscribeToChannel[PictureTakenEvent](bus, ch),
		SubscribeToChannel[AllocationFailedEvent](bus, ch),
		SubscribeToChannel[SessionReleasedEvent](bus, ch),
		SubscribeToChannel[AllocatorResetEvent](bus, ch),
		SubscribeToChannel[DeviceEvent](bus, ch),
		SubscribeToChannel[ParametersChangedEvent](bus, ch),
		SubscribeToChannel[MetricsEvent](bus, ch),
		SubscribeToChannel[LogEntryEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
