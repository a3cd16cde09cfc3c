// Package quantize decodes 16-bit coordinate codes back into measurement
// values against a resolved axis range.
//
// Codes interpolate in transformed space: code q maps to
// inv(lo + q/65535*(hi-lo)) where lo and hi are the transformed range bounds.
// The end codes are exact: 0 decodes to the range minimum and 65535 to the
// maximum, bit-for-bit, regardless of transform.
package quantize

import (
	"fmt"
	"math"

	"github.com/tercen/ggrs-plot-operator-sub000/axis"
)

// Max is the largest quantized code.
const Max = 65535

// Params is a compiled decoding table for one facet cell. The zero value is
// not usable; obtain Params from Compile.
type Params struct {
	categorical bool
	min         float64
	max         float64
	lo          float64
	hi          float64
	tr          *axis.Transform
}

// Compile prepares decoding parameters for a range. Categorical ranges
// compile to a passthrough where codes are level positions.
func Compile(r axis.Range) (Params, error) {
	if err := r.Validate(); err != nil {
		return Params{}, err
	}
	if r.Kind == axis.KindCategorical {
		return Params{categorical: true}, nil
	}
	return Params{
		min: r.Min,
		max: r.Max,
		lo:  r.Transform.Apply(r.Min),
		hi:  r.Transform.Apply(r.Max),
		tr:  r.Transform,
	}, nil
}

// Categorical reports whether codes decode to level positions.
func (p Params) Categorical() bool { return p.categorical }

// At decodes a single code.
func (p Params) At(q uint16) float64 {
	if p.categorical {
		return float64(q)
	}
	switch q {
	case 0:
		return p.min
	case Max:
		return p.max
	}
	t := float64(q) / Max
	return p.tr.Inverse(p.lo + t*(p.hi-p.lo))
}

// Quantize encodes a value to its nearest code. Values outside the range
// clamp to the end codes.
func (p Params) Quantize(v float64) uint16 {
	if p.categorical {
		if v <= 0 {
			return 0
		}
		if v >= Max {
			return Max
		}
		return uint16(v)
	}
	if v <= p.min {
		return 0
	}
	if v >= p.max {
		return Max
	}
	t := (p.tr.Apply(v) - p.lo) / (p.hi - p.lo)
	q := math.Round(t * Max)
	if q < 0 {
		return 0
	}
	if q > Max {
		return Max
	}
	return uint16(q)
}

// Value decodes one code against a numeric range.
func Value(q uint16, r axis.Range) (float64, error) {
	p, err := Compile(r)
	if err != nil {
		return 0, err
	}
	if p.categorical {
		return 0, fmt.Errorf("quantize: categorical range has no scalar value")
	}
	return p.At(q), nil
}

// Apply decodes a full column of codes. cells[i] selects the decoding
// parameters of row i from table. Rows marked invalid in the bitmap decode
// to NaN. A nil bitmap means every row is valid.
func Apply(dst []float64, qs []uint16, cells []uint32, table []Params, valid []uint64) error {
	if len(dst) != len(qs) || len(qs) != len(cells) {
		return fmt.Errorf("quantize: length mismatch: dst=%d codes=%d cells=%d", len(dst), len(qs), len(cells))
	}
	for i := range qs {
		if valid != nil && valid[i>>6]&(1<<(uint(i)&63)) == 0 {
			dst[i] = math.NaN()
			continue
		}
		ci := cells[i]
		if int(ci) >= len(table) {
			return fmt.Errorf("quantize: cell index %d out of range [0,%d)", ci, len(table))
		}
		dst[i] = table[ci].At(qs[i])
	}
	return nil
}
