package gpu

import (
	"fmt"

	"github.com/gekko3d/volumert/volrt/rt/core"
)

// maxAcquireFailures is how many frames in a row may fail to get a surface
// texture before the device is treated as lost.
const maxAcquireFailures = 120

// surfaceAcquire counts consecutive GetCurrentTexture failures. Isolated
// failures skip a frame; a long run of them ends the render loop.
type surfaceAcquire struct {
	failures int
}

func (s *surfaceAcquire) failed(err error) error {
	s.failures++
	if s.failures >= maxAcquireFailures {
		return fmt.Errorf("%w: no surface texture for %d frames: %v", core.ErrGraphicsContext, s.failures, err)
	}
	return fmt.Errorf("%w: %v", core.ErrSurfaceUnavailable, err)
}

func (s *surfaceAcquire) succeeded() {
	s.failures = 0
}
