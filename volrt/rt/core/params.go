package core

import (
	"fmt"

	"github.com/chewxy/math32"
)

const (
	MinStepCount       = 1
	MaxStepCount       = 512
	MinAlphaCorrection = 0.01
	MaxAlphaCorrection = 5.0

	DefaultStepCount       = 256
	DefaultAlphaCorrection = 1.0
)

// RenderParameters is the per-frame snapshot of the march controls.
type RenderParameters struct {
	StepCount       int
	AlphaCorrection float32
}

func DefaultRenderParameters() RenderParameters {
	return RenderParameters{
		StepCount:       DefaultStepCount,
		AlphaCorrection: DefaultAlphaCorrection,
	}
}

// Validate rejects values the march cannot use. A zero step count would
// divide the ray length by zero.
func (p RenderParameters) Validate() error {
	if p.StepCount < MinStepCount || p.StepCount > MaxStepCount {
		return fmt.Errorf("%w: step count %d outside [%d, %d]", ErrInvalidParameters, p.StepCount, MinStepCount, MaxStepCount)
	}
	ac := p.AlphaCorrection
	if math32.IsNaN(ac) || ac < MinAlphaCorrection || ac > MaxAlphaCorrection {
		return fmt.Errorf("%w: alpha correction %v outside [%v, %v]", ErrInvalidParameters, p.AlphaCorrection, MinAlphaCorrection, MaxAlphaCorrection)
	}
	return nil
}
