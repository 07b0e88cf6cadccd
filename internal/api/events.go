package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/spearcam/internal/events"
)

// sseEventTypes names every bus event on the wire.
var sseEventTypes = map[string]any{
	"preview-state":      events.PreviewStateChangedEvent{},
	"picture-taken":      events.PictureTakenEvent{},
	"allocation-failed":  events.AllocationFailedEvent{},
	"session-released":   events.SessionReleasedEvent{},
	"allocator-reset":    events.AllocatorResetEvent{},
	"device":             events.DeviceEvent{},
	"parameters-changed": events.ParametersChangedEvent{},
	"metrics":            events.MetricsEvent{},
	"log":                events.LogEntryEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of camera, allocator, device and log events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		// Tell the client where the pipeline stands before any change arrives.
		if s.options.Camera != nil {
			st := s.options.Camera.Status()
			if err := send.Data(events.PreviewStateChangedEvent{
				State:     string(st.State),
				Recording: st.Recording,
				Width:     st.Width,
				Height:    st.Height,
				Device:    st.Device,
				Timestamp: time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
