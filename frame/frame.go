// Package frame provides the columnar chunk model shared by the streaming
// pipeline: typed columns with validity bitmaps, row ranges, and a
// self-describing binary container used for on-disk cache entries.
package frame

import (
	"errors"
	"fmt"
)

// Type identifies the physical type of a column.
type Type uint8

const (
	TypeInvalid Type = iota
	// TypeUint16 holds quantized coordinate values.
	TypeUint16
	// TypeInt32 holds facet indices, categorical levels and layer ids.
	TypeInt32
	// TypeFloat64 holds dequantized measurement values.
	TypeFloat64
	// TypeUint32 holds packed 0xRRGGBB colors.
	TypeUint32
	// TypeString holds labels and discriminator values.
	TypeString
)

// String returns the string representation of the Type.
func (t Type) String() string {
	switch t {
	case TypeUint16:
		return "Uint16"
	case TypeInt32:
		return "Int32"
	case TypeFloat64:
		return "Float64"
	case TypeUint32:
		return "Uint32"
	case TypeString:
		return "String"
	default:
		return "Invalid"
	}
}

var (
	// ErrLengthMismatch is returned when a column's length disagrees with its frame.
	ErrLengthMismatch = errors.New("frame: column length mismatch")

	// ErrDuplicateColumn is returned when a column name is added twice.
	ErrDuplicateColumn = errors.New("frame: duplicate column name")
)

// ColumnNotFoundError indicates that a required column is absent.
type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("frame: column %q not found", e.Name)
}

// ColumnTypeError indicates that a column exists but has the wrong type.
type ColumnTypeError struct {
	Name string
	Want Type
	Got  Type
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("frame: column %q is %s, want %s", e.Name, e.Got, e.Want)
}

// Column is a single named, typed column.
//
// Exactly one of the value slices is populated, selected by Type. Valid is an
// optional bitmap marking rows that carry a value; bit i set means row i is
// valid. A nil bitmap means every row is valid.
type Column struct {
	Name string
	Type Type

	U16 []uint16
	I32 []int32
	F64 []float64
	U32 []uint32
	Str []string

	Valid []uint64
}

// NewUint16 creates a Uint16 column over values.
func NewUint16(name string, values []uint16) Column {
	return Column{Name: name, Type: TypeUint16, U16: values}
}

// NewInt32 creates an Int32 column over values.
func NewInt32(name string, values []int32) Column {
	return Column{Name: name, Type: TypeInt32, I32: values}
}

// NewFloat64 creates a Float64 column over values.
func NewFloat64(name string, values []float64) Column {
	return Column{Name: name, Type: TypeFloat64, F64: values}
}

// NewUint32 creates a Uint32 column over values.
func NewUint32(name string, values []uint32) Column {
	return Column{Name: name, Type: TypeUint32, U32: values}
}

// NewString creates a String column over values.
func NewString(name string, values []string) Column {
	return Column{Name: name, Type: TypeString, Str: values}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.Type {
	case TypeUint16:
		return len(c.U16)
	case TypeInt32:
		return len(c.I32)
	case TypeFloat64:
		return len(c.F64)
	case TypeUint32:
		return len(c.U32)
	case TypeString:
		return len(c.Str)
	default:
		return 0
	}
}

// IsValid reports whether row i carries a value.
func (c *Column) IsValid(i int) bool {
	if c.Valid == nil {
		return true
	}
	return c.Valid[i>>6]&(1<<(uint(i)&63)) != 0
}

// SetInvalid clears row i's validity bit, allocating the bitmap on first use.
func (c *Column) SetInvalid(i int) {
	if c.Valid == nil {
		c.Valid = allValidBitmap(c.Len())
	}
	c.Valid[i>>6] &^= 1 << (uint(i) & 63)
}

// SetValid sets row i's validity bit.
func (c *Column) SetValid(i int) {
	if c.Valid == nil {
		return
	}
	c.Valid[i>>6] |= 1 << (uint(i) & 63)
}

// AsUint16 converts an Int32 column into a Uint16 column, validating that
// every valid value fits the quantized domain. Uint16 columns pass through
// unchanged. Validity bits are preserved.
func (c *Column) AsUint16() (Column, error) {
	switch c.Type {
	case TypeUint16:
		return *c, nil
	case TypeInt32:
		out := Column{Name: c.Name, Type: TypeUint16, U16: make([]uint16, len(c.I32)), Valid: cloneBitmap(c.Valid)}
		for i, v := range c.I32 {
			if !c.IsValid(i) {
				continue
			}
			if v < 0 || v > 65535 {
				return Column{}, fmt.Errorf("frame: column %q row %d: value %d outside quantized domain [0,65535]", c.Name, i, v)
			}
			out.U16[i] = uint16(v)
		}
		return out, nil
	default:
		return Column{}, &ColumnTypeError{Name: c.Name, Want: TypeUint16, Got: c.Type}
	}
}

func (c *Column) take(rows []uint32) Column {
	out := Column{Name: c.Name, Type: c.Type}
	switch c.Type {
	case TypeUint16:
		out.U16 = make([]uint16, len(rows))
		for i, r := range rows {
			out.U16[i] = c.U16[r]
		}
	case TypeInt32:
		out.I32 = make([]int32, len(rows))
		for i, r := range rows {
			out.I32[i] = c.I32[r]
		}
	case TypeFloat64:
		out.F64 = make([]float64, len(rows))
		for i, r := range rows {
			out.F64[i] = c.F64[r]
		}
	case TypeUint32:
		out.U32 = make([]uint32, len(rows))
		for i, r := range rows {
			out.U32[i] = c.U32[r]
		}
	case TypeString:
		out.Str = make([]string, len(rows))
		for i, r := range rows {
			out.Str[i] = c.Str[r]
		}
	}
	if c.Valid != nil {
		out.Valid = allValidBitmap(len(rows))
		for i, r := range rows {
			if !c.IsValid(int(r)) {
				out.Valid[i>>6] &^= 1 << (uint(i) & 63)
			}
		}
	}
	return out
}

func (c *Column) clone() Column {
	out := Column{Name: c.Name, Type: c.Type, Valid: cloneBitmap(c.Valid)}
	switch c.Type {
	case TypeUint16:
		out.U16 = append([]uint16(nil), c.U16...)
	case TypeInt32:
		out.I32 = append([]int32(nil), c.I32...)
	case TypeFloat64:
		out.F64 = append([]float64(nil), c.F64...)
	case TypeUint32:
		out.U32 = append([]uint32(nil), c.U32...)
	case TypeString:
		out.Str = append([]string(nil), c.Str...)
	}
	return out
}

// allValidBitmap returns a bitmap of n set bits.
func allValidBitmap(n int) []uint64 {
	words := (n + 63) / 64
	bm := make([]uint64, words)
	for i := range bm {
		bm[i] = ^uint64(0)
	}
	if rem := uint(n) & 63; rem != 0 && words > 0 {
		bm[words-1] = (1 << rem) - 1
	}
	return bm
}

func cloneBitmap(bm []uint64) []uint64 {
	if bm == nil {
		return nil
	}
	return append([]uint64(nil), bm...)
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New creates an empty frame with the given row count.
func New(rows int) *Frame {
	return &Frame{index: make(map[string]int), rows: rows}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i := range f.cols {
		names[i] = f.cols[i].Name
	}
	return names
}

// Has reports whether a column with the given name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Add appends a column. The column length must match the frame's row count
// and the name must be unused.
func (f *Frame) Add(c Column) error {
	if c.Len() != f.rows {
		return fmt.Errorf("%w: column %q has %d rows, frame has %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	if _, ok := f.index[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Replace swaps the column with the same name for c, keeping its position.
func (f *Frame) Replace(c Column) error {
	i, ok := f.index[c.Name]
	if !ok {
		return &ColumnNotFoundError{Name: c.Name}
	}
	if c.Len() != f.rows {
		return fmt.Errorf("%w: column %q has %d rows, frame has %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	f.cols[i] = c
	return nil
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &ColumnNotFoundError{Name: name}
	}
	return &f.cols[i], nil
}

// ColumnAt returns the column at position i in insertion order.
func (f *Frame) ColumnAt(i int) *Column { return &f.cols[i] }

func (f *Frame) typed(name string, want Type) (*Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Type != want {
		return nil, &ColumnTypeError{Name: name, Want: want, Got: c.Type}
	}
	return c, nil
}

// Uint16 returns the named column, which must be of type Uint16.
func (f *Frame) Uint16(name string) (*Column, error) { return f.typed(name, TypeUint16) }

// Int32 returns the named column, which must be of type Int32.
func (f *Frame) Int32(name string) (*Column, error) { return f.typed(name, TypeInt32) }

// Float64 returns the named column, which must be of type Float64.
func (f *Frame) Float64(name string) (*Column, error) { return f.typed(name, TypeFloat64) }

// Uint32 returns the named column, which must be of type Uint32.
func (f *Frame) Uint32(name string) (*Column, error) { return f.typed(name, TypeUint32) }

// Strings returns the named column, which must be of type String.
func (f *Frame) Strings(name string) (*Column, error) { return f.typed(name, TypeString) }

// Take returns a new frame holding the given rows, in order.
func (f *Frame) Take(rows []uint32) *Frame {
	out := New(len(rows))
	for i := range f.cols {
		// Add cannot fail here: lengths match by construction, names are unique.
		_ = out.Add(f.cols[i].take(rows))
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	for i := range f.cols {
		_ = out.Add(f.cols[i].clone())
	}
	return out
}

// Slice returns a new frame holding rows [start, end).
func (f *Frame) Slice(start, end int) (*Frame, error) {
	if start < 0 || end < start || end > f.rows {
		return nil, fmt.Errorf("frame: slice [%d,%d) out of bounds for %d rows", start, end, f.rows)
	}
	rows := make([]uint32, end-start)
	for i := range rows {
		rows[i] = uint32(start + i)
	}
	return f.Take(rows), nil
}
