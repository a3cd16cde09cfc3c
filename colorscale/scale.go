package colorscale

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Stop anchors a color at a driving value on a continuous scale.
type Stop struct {
	Value float64
	Color RGB
}

// ErrNoStops is returned when a continuous scale is built without stops.
var ErrNoStops = errors.New("colorscale: continuous scale needs at least one stop")

// StopOrderError indicates stops that are not strictly ascending.
type StopOrderError struct {
	Index int
}

func (e *StopOrderError) Error() string {
	return fmt.Sprintf("colorscale: stop %d is not strictly ascending", e.Index)
}

// Continuous maps driving values to colors by interpolating between sorted
// stops. Values outside the stop span clamp to the end colors.
type Continuous struct {
	stops []Stop
}

// NewContinuous builds a continuous scale. Stops must be finite and strictly
// ascending by value.
func NewContinuous(stops []Stop) (*Continuous, error) {
	if len(stops) == 0 {
		return nil, ErrNoStops
	}
	copied := make([]Stop, len(stops))
	copy(copied, stops)

	for i, s := range copied {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return nil, fmt.Errorf("colorscale: stop %d has non-finite value %v", i, s.Value)
		}
		if i > 0 && s.Value <= copied[i-1].Value {
			return nil, &StopOrderError{Index: i}
		}
	}
	return &Continuous{stops: copied}, nil
}

// At returns the color for a driving value.
func (s *Continuous) At(v float64) RGB {
	stops := s.stops
	if v <= stops[0].Value || math.IsNaN(v) {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if v >= last.Value {
		return last.Color
	}

	// First stop with value >= v; v is strictly inside the span, so
	// 1 <= i <= len(stops)-1.
	i := sort.Search(len(stops), func(i int) bool { return stops[i].Value >= v })
	lo, hi := stops[i-1], stops[i]
	t := (v - lo.Value) / (hi.Value - lo.Value)
	return Lerp(lo.Color, hi.Color, t)
}

// Stops returns a copy of the scale's stops.
func (s *Continuous) Stops() []Stop {
	out := make([]Stop, len(s.stops))
	copy(out, s.stops)
	return out
}

// Categorical maps discrete level codes to colors, with a default for
// unmapped codes.
type Categorical struct {
	colors map[int32]RGB
	def    RGB
}

// NewCategorical builds a categorical scale. colors may be empty, in which
// case every level resolves to the default.
func NewCategorical(colors map[int32]RGB, def RGB) *Categorical {
	copied := make(map[int32]RGB, len(colors))
	for k, v := range colors {
		copied[k] = v
	}
	return &Categorical{colors: copied, def: def}
}

// At returns the color for a level code.
func (s *Categorical) At(level int32) RGB {
	if c, ok := s.colors[level]; ok {
		return c
	}
	return s.def
}

// Levels returns the mapped level codes in ascending order.
func (s *Categorical) Levels() []int32 {
	levels := make([]int32, 0, len(s.colors))
	for k := range s.colors {
		levels = append(levels, k)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Default returns the color of unmapped levels.
func (s *Categorical) Default() RGB { return s.def }
