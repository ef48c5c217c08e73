package core

import "errors"

// Recoverable errors leave the last-known-good volume, transfer function
// and parameters bound. ErrGraphicsContext is fatal to the render loop.
// ErrSurfaceUnavailable drops one frame; the surface is reconfigured and
// the next frame tries again.
var (
	ErrDatasetLoad       = errors.New("dataset load failed")
	ErrInvalidStopSet    = errors.New("invalid transfer function stop set")
	ErrInvalidParameters = errors.New("invalid render parameters")
	ErrGraphicsContext   = errors.New("graphics context unavailable")

	ErrSurfaceUnavailable = errors.New("surface texture unavailable")
)
