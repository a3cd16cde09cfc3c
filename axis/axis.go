// Package axis resolves the value range of every facet cell, the anchor both
// quantization and dequantization interpolate against.
//
// Ranges normally arrive in a dedicated range table keyed by facet indices.
// Cells the table misses can be served by a fallback that scans the source
// data once per cell; results are memoized so repeated chunk queries never
// rescan.
package axis

import (
	"fmt"
	"math"
)

// Kind discriminates numeric from categorical axis ranges.
type Kind uint8

const (
	// KindNumeric is a continuous [Min, Max] range.
	KindNumeric Kind = iota
	// KindCategorical is a discrete set of levels addressed by position.
	KindCategorical
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Range describes the value domain of one facet cell.
type Range struct {
	Kind Kind

	// Min and Max bound a numeric range in data space.
	Min float64
	Max float64

	// Transform, when set, is the scale transform interpolation happens
	// under. Nil means linear.
	Transform *Transform

	// Levels holds the ordered level names of a categorical range.
	Levels []string
}

// Numeric returns a linear numeric range.
func Numeric(min, max float64) Range {
	return Range{Kind: KindNumeric, Min: min, Max: max}
}

// NumericTransformed returns a numeric range under the given transform.
func NumericTransformed(min, max float64, tr *Transform) Range {
	return Range{Kind: KindNumeric, Min: min, Max: max, Transform: tr}
}

// Categorical returns a categorical range over the given levels.
func Categorical(levels []string) Range {
	return Range{Kind: KindCategorical, Levels: levels}
}

// Validate checks that the range is usable for interpolation.
func (r Range) Validate() error {
	switch r.Kind {
	case KindNumeric:
		if math.IsNaN(r.Min) || math.IsInf(r.Min, 0) || math.IsNaN(r.Max) || math.IsInf(r.Max, 0) {
			return fmt.Errorf("axis: numeric range [%v,%v] is not finite", r.Min, r.Max)
		}
		if r.Min > r.Max {
			return fmt.Errorf("axis: numeric range min %v exceeds max %v", r.Min, r.Max)
		}
		return r.Transform.check(r.Min)
	case KindCategorical:
		if len(r.Levels) == 0 {
			return fmt.Errorf("axis: categorical range needs at least one level")
		}
		return nil
	default:
		return fmt.Errorf("axis: unknown range kind %d", uint8(r.Kind))
	}
}

// Cell addresses one facet cell by its grid indices.
type Cell struct {
	Col int
	Row int
}

// String returns the cell in c<col>:r<row> notation.
func (c Cell) String() string { return fmt.Sprintf("c%d:r%d", c.Col, c.Row) }

// MissingRangeError indicates that no range could be resolved for a cell.
type MissingRangeError struct {
	Cell Cell
}

func (e *MissingRangeError) Error() string {
	return fmt.Sprintf("axis: no range for cell %s: verify the range table was included among the required inputs", e.Cell)
}
