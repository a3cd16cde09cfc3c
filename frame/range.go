package frame

import "fmt"

// Range is a half-open row interval [Start, End).
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of rows covered by the range.
func (r Range) Len() int64 { return r.End - r.Start }

// Contains reports whether row is inside the range.
func (r Range) Contains(row int64) bool { return row >= r.Start && row < r.End }

// Validate checks that the range is well-formed and non-empty.
func (r Range) Validate() error {
	if r.Start < 0 || r.End <= r.Start {
		return fmt.Errorf("frame: invalid row range [%d,%d)", r.Start, r.End)
	}
	return nil
}

// String returns the interval notation for the range.
func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }
