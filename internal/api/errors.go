package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/memalloc"
	"github.com/smazurov/spearcam/internal/surface"
)

// toHumaError maps a component error onto an HTTP status.
func toHumaError(msg string, err error) error {
	switch {
	case errors.Is(err, camera.ErrBadValue):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, camera.ErrInvalidOperation):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, camera.ErrNoDevice):
		return huma.Error503ServiceUnavailable(msg, err)
	case errors.Is(err, memalloc.ErrTooManySessions):
		return huma.Error429TooManyRequests(msg, err)
	case errors.Is(err, memalloc.ErrNotOwner):
		return huma.Error403Forbidden(msg, err)
	case errors.Is(err, memalloc.ErrSessionClosed), errors.Is(err, surface.ErrNoFrame):
		return huma.Error404NotFound(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
