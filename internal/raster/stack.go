package raster

import (
	"fmt"
	"time"

	"bitbucket.org/ctessum/sparse"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// Layer is one timestamped 2-D grid. Data is rows × cols in Celsius with NaN
// marking ocean-masked or otherwise missing cells.
type Layer struct {
	Time time.Time
	Data *sparse.DenseArray
}

// Stack is the ordered layer sequence for a single variable on a fixed grid.
type Stack struct {
	Variable domain.Variable
	Geometry *GridGeometry
	Layers   []Layer
}

// Timestamps returns the layer times in order.
func (s *Stack) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Layers))
	for i, l := range s.Layers {
		ts[i] = l.Time
	}
	return ts
}

// Append concatenates another stack in time order. The appended stack must
// share the grid geometry and strictly follow the receiver in time; a
// duplicated or out-of-order timestamp means the input files overlap and is
// rejected rather than silently deduplicated.
func (s *Stack) Append(o *Stack) error {
	if s.Variable != o.Variable {
		return fmt.Errorf("appending %s stack to %s stack", o.Variable, s.Variable)
	}
	if !s.Geometry.Equal(o.Geometry) {
		return fmt.Errorf("appending %s stack: grid geometry differs between files", s.Variable)
	}
	if len(s.Layers) > 0 && len(o.Layers) > 0 {
		last, first := s.Layers[len(s.Layers)-1].Time, o.Layers[0].Time
		if !first.After(last) {
			return fmt.Errorf("appending %s stack: timestamp %s does not follow %s",
				s.Variable, first.Format(time.RFC3339), last.Format(time.RFC3339))
		}
	}
	s.Layers = append(s.Layers, o.Layers...)
	return nil
}

// VerifyAligned checks that all stacks share an identical timestamp sequence
// and cell geometry. This is verified, not assumed: a drifting archive file
// must fail the year instead of silently misaligning variables.
func VerifyAligned(year int, stacks map[domain.Variable]*Stack) error {
	var ref *Stack
	for _, s := range stacks {
		ref = s
		break
	}
	for v, s := range stacks {
		if !s.Geometry.Equal(ref.Geometry) {
			return domain.Dimensionf(year, "variable %s has different cell geometry", v)
		}
		if len(s.Layers) != len(ref.Layers) {
			return domain.Dimensionf(year, "variable %s has %d layers, want %d",
				v, len(s.Layers), len(ref.Layers))
		}
		for i := range s.Layers {
			if !s.Layers[i].Time.Equal(ref.Layers[i].Time) {
				return domain.Dimensionf(year, "variable %s layer %d at %s, want %s",
					v, i, s.Layers[i].Time.Format(time.RFC3339), ref.Layers[i].Time.Format(time.RFC3339))
			}
		}
	}
	return nil
}
