package core

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
)

func TestRenderParameters_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params RenderParameters
		valid  bool
	}{
		{"defaults", DefaultRenderParameters(), true},
		{"minimum", RenderParameters{StepCount: 1, AlphaCorrection: 0.01}, true},
		{"maximum", RenderParameters{StepCount: 512, AlphaCorrection: 5}, true},
		{"zero steps", RenderParameters{StepCount: 0, AlphaCorrection: 1}, false},
		{"negative steps", RenderParameters{StepCount: -3, AlphaCorrection: 1}, false},
		{"too many steps", RenderParameters{StepCount: 513, AlphaCorrection: 1}, false},
		{"zero alpha correction", RenderParameters{StepCount: 64, AlphaCorrection: 0}, false},
		{"alpha correction above range", RenderParameters{StepCount: 64, AlphaCorrection: 5.5}, false},
		{"NaN alpha correction", RenderParameters{StepCount: 64, AlphaCorrection: math32.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}
