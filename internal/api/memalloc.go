package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/spearcam/internal/api/models"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/memalloc"
)

// registerMemallocRoutes exposes the allocator device. Sessions opened here
// behave like open file handles on the device and stay open until deleted.
func (s *Server) registerMemallocRoutes() {
	dev := s.options.Memalloc
	if dev == nil {
		s.logger.Debug("Allocator not configured, skipping memalloc routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-memalloc",
		Method:      http.MethodGet,
		Path:        "/api/memalloc",
		Summary:     "Allocation table",
		Description: "Get the active profile, table totals, open sessions and every chunk",
		Tags:        []string{"memalloc"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MemallocResponse, error) {
		alloc := dev.Allocator()
		sessions := dev.Sessions()
		if sessions == nil {
			sessions = []memalloc.SessionID{}
		}
		return &models.MemallocResponse{
			Body: models.MemallocData{
				Profile:    alloc.Profile().Name,
				Base:       fmt.Sprintf("0x%08x", alloc.Base()),
				StrictFree: alloc.StrictFree(),
				Stats:      alloc.Stats(),
				Sessions:   sessions,
				Chunks:     alloc.Chunks(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "reset-memalloc",
		Method:        http.MethodPost,
		Path:          "/api/memalloc/reset",
		Summary:       "Hard reset",
		Description:   "Rebuild the table and mark every chunk free, whatever session holds it",
		Tags:          []string{"memalloc"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		dev.Allocator().Reset()
		s.logger.Info("Allocator reset via API")
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "open-memalloc-session",
		Method:        http.MethodPost,
		Path:          "/api/memalloc/sessions",
		Summary:       "Open session",
		Description:   "Open a session with the lowest free id",
		Tags:          []string{"memalloc"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 429},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SessionResponse, error) {
		sess, err := dev.Open()
		if err != nil {
			return nil, toHumaError("Failed to open session", err)
		}
		return &models.SessionResponse{Body: models.SessionData{ID: sess.ID()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "close-memalloc-session",
		Method:      http.MethodDelete,
		Path:        "/api/memalloc/sessions/{id}",
		Summary:     "Close session",
		Description: "Close a session and return every chunk it holds",
		Tags:        []string{"memalloc"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SessionPath) (*models.SessionClosedResponse, error) {
		sess, err := s.lookupSession(input.ID)
		if err != nil {
			return nil, err
		}
		resp := &models.SessionClosedResponse{}
		resp.Body.ID = sess.ID()
		resp.Body.Freed = sess.Close()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-memalloc-buffer",
		Method:      http.MethodPost,
		Path:        "/api/memalloc/sessions/{id}/buffers",
		Summary:     "Allocate buffer",
		Description: "Reserve the first free chunk large enough for size. A full table is reported with ok=false, not an error.",
		Tags:        []string{"memalloc"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BufferRequest) (*models.BufferResponse, error) {
		sess, err := s.lookupSession(input.ID)
		if err != nil {
			return nil, err
		}
		p := memalloc.Params{Size: input.Body.Size}
		if err := sess.Ioctl(memalloc.CmdGetBuffer, &p); err != nil {
			return nil, toHumaError("Failed to allocate buffer", err)
		}
		return &models.BufferResponse{
			Body: models.BufferData{
				BusAddress: p.BusAddress,
				Hex:        fmt.Sprintf("0x%08x", p.BusAddress),
				OK:         p.BusAddress != 0,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "free-memalloc-buffer",
		Method:        http.MethodDelete,
		Path:          "/api/memalloc/sessions/{id}/buffers/{address}",
		Summary:       "Free buffer",
		Description:   "Return the chunk starting at address to the pool",
		Tags:          []string{"memalloc"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{400, 401, 403, 404},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.BufferPath) (*struct{}, error) {
		sess, err := s.lookupSession(input.ID)
		if err != nil {
			return nil, err
		}
		addr, err := config.ParseAddress(input.Address)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid bus address", err)
		}
		freed, err := sess.FreeBuffer(addr)
		if err != nil {
			return nil, toHumaError("Failed to free buffer", err)
		}
		if !freed {
			return nil, huma.Error404NotFound(fmt.Sprintf("No allocated chunk at 0x%08x", addr))
		}
		return &struct{}{}, nil
	})
}

func (s *Server) lookupSession(id int) (*memalloc.Session, error) {
	sess, ok := s.options.Memalloc.Lookup(memalloc.SessionID(id))
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("Session %d is not open", id))
	}
	return sess, nil
}
