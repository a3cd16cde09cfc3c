package plotstream

import (
	"errors"
	"fmt"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

var (
	// ErrNoSource is returned when an adapter is constructed without a source.
	ErrNoSource = errors.New("plotstream: source must not be nil")

	// ErrNoTable is returned when the configuration names no data table.
	ErrNoTable = errors.New("plotstream: table id must not be empty")

	// ErrNoSession is returned when the configuration names no session.
	ErrNoSession = errors.New("plotstream: session id must not be empty")
)

// FetchError indicates that the source failed to serve a column window.
//
// The collaborator's error can be accessed via errors.Unwrap.
type FetchError struct {
	Table string
	Range frame.Range
	cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("plotstream: fetch table %q rows %s: %v", e.Table, e.Range, e.cause)
}

func (e *FetchError) Unwrap() error { return e.cause }

// UnmappedColumnError indicates that the column mapping names a column the
// table's schema does not carry.
type UnmappedColumnError struct {
	Table  string
	Column string
}

func (e *UnmappedColumnError) Error() string {
	return fmt.Sprintf("plotstream: table %q has no column %q: verify the column mapping against the table schema", e.Table, e.Column)
}

// MissingFacetError indicates that a fetched chunk row carries no facet
// index, which the pipeline cannot recover from.
type MissingFacetError struct {
	Column string
	Row    int64
}

func (e *MissingFacetError) Error() string {
	return fmt.Sprintf("plotstream: column %q has no value at row %d: facet indices must be present for every row", e.Column, e.Row)
}
