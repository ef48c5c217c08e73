package gpu

import (
	"errors"
	"testing"

	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/stretchr/testify/assert"
)

func TestSurfaceAcquire_TransientFailuresSkipFrames(t *testing.T) {
	var s surfaceAcquire
	outdated := errors.New("surface outdated")

	for i := 0; i < maxAcquireFailures-1; i++ {
		err := s.failed(outdated)
		assert.ErrorIs(t, err, core.ErrSurfaceUnavailable)
		assert.NotErrorIs(t, err, core.ErrGraphicsContext)
	}

	s.succeeded()
	err := s.failed(outdated)
	assert.ErrorIs(t, err, core.ErrSurfaceUnavailable, "a success resets the run")
}

func TestSurfaceAcquire_PersistentFailureIsFatal(t *testing.T) {
	var s surfaceAcquire
	var err error
	for i := 0; i < maxAcquireFailures; i++ {
		err = s.failed(errors.New("timeout"))
	}
	assert.ErrorIs(t, err, core.ErrGraphicsContext)
	assert.NotErrorIs(t, err, core.ErrSurfaceUnavailable)
}
