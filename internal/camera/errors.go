package camera

import "errors"

var (
	// ErrInvalidOperation is returned when the pipeline is in the wrong state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNoDevice is returned when no capture node in the probe set opens.
	ErrNoDevice = errors.New("no capture device")
	// ErrBadValue is returned for rejected parameters and commands.
	ErrBadValue = errors.New("bad value")
	// ErrSurfaceGone is returned by a Surface whose consumer has gone away.
	ErrSurfaceGone = errors.New("surface abandoned")
	// ErrShortImage is returned when an encoded image is too short to splice.
	ErrShortImage = errors.New("encoded image too short")
)
