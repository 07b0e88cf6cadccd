package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan PreviewStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e PreviewStateChangedEvent) {
		received <- e
	})
	defer unsub()

	ev := PreviewStateChangedEvent{
		State:     "running",
		Width:     320,
		Height:    240,
		Device:    "/dev/video0",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.Device != ev.Device {
		t.Errorf("Expected device %s, got %s", ev.Device, got.Device)
	}
	if got.Width != 320 || got.Height != 240 {
		t.Errorf("Expected 320x240, got %dx%d", got.Width, got.Height)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan AllocationFailedEvent, 1)
	received2 := make(chan AllocationFailedEvent, 1)

	unsub1 := bus.Subscribe(func(e AllocationFailedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e AllocationFailedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(AllocationFailedEvent{Size: 8192, Session: 3})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceEvent, 1)

	unsub := bus.Subscribe(func(e DeviceEvent) {
		received <- e
	})

	bus.Publish(DeviceEvent{DevicePath: "/dev/video0"})
	<-received

	unsub()

	bus.Publish(DeviceEvent{DevicePath: "/dev/video1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	pictureReceived := make(chan bool, 1)
	resetReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ PictureTakenEvent) {
		pictureReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ AllocatorResetEvent) {
		resetReceived <- true
	})
	defer unsub2()

	bus.Publish(PictureTakenEvent{Width: 320, Height: 240})
	<-pictureReceived

	select {
	case <-resetReceived:
		t.Fatal("Reset subscriber should NOT have received PictureTakenEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(AllocatorResetEvent{Profile: "android"})
	<-resetReceived

	select {
	case <-pictureReceived:
		t.Fatal("Picture subscriber should NOT have received AllocatorResetEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ SessionReleasedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for i := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SessionReleasedEvent{
					Session:   i,
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestSubscribeAll(t *testing.T) {
	bus := New()
	ch := make(chan any, 32)

	unsub := SubscribeAll(bus, ch)
	defer unsub()

	published := []Event{
		PreviewStateChangedEvent{State: "running"},
		PictureTakenEvent{Bytes: 10},
		AllocationFailedEvent{Size: 1},
		SessionReleasedEvent{Freed: 2},
		AllocatorResetEvent{Profile: "basic"},
		DeviceEvent{Action: "add"},
		ParametersChangedEvent{Source: "api"},
		MetricsEvent{EventType: "metrics"},
		LogEntryEvent{Message: "hello"},
	}
	for _, ev := range published {
		bus.Publish(ev)
	}

	seen := make(map[uint32]bool)
	timeout := time.After(time.Second)
	for len(seen) < len(published) {
		select {
		case got := <-ch:
			ev, ok := got.(Event)
			if !ok {
				t.Fatalf("Expected Event, got %T", got)
			}
			seen[ev.Type()] = true
		case <-timeout:
			t.Fatalf("Expected %d event types, got %d", len(published), len(seen))
		}
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
		key   string
	}{
		{"PreviewStateChangedEvent", PreviewStateChangedEvent{State: "stopped"}, "state"},
		{"AllocatorResetEvent", AllocatorResetEvent{Profile: "android", OverWindow: true}, "over_window"},
		{"DeviceEvent", DeviceEvent{Action: "remove", DevicePath: "/dev/video0"}, "device_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}
			if _, ok := result[tt.key]; !ok {
				t.Errorf("Expected key %q in %s", tt.key, data)
			}
		})
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[PictureTakenEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(PictureTakenEvent{Bytes: 1})
		done <- true
	}()

	<-done
}
