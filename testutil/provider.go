package testutil

import (
	"context"
	"fmt"

	plotstream "github.com/tercen/ggrs-plot-operator-sub000"
	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/colorscale"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// StaticProvider is a plotstream.Provider over fixed data, for tests of
// renderer-side code that should not stand up a full adapter.
type StaticProvider struct {
	RowLabels []string
	ColLabels []string
	Ranges    map[axis.Cell]axis.Range
	Scale     colorscale.Metadata
	Chunks    map[frame.Range]*frame.Frame
}

// FacetCount implements plotstream.Provider.
func (p *StaticProvider) FacetCount(ax facet.Axis) int {
	if ax == facet.Columns {
		return len(p.ColLabels)
	}
	return len(p.RowLabels)
}

// FacetLabels implements plotstream.Provider.
func (p *StaticProvider) FacetLabels(ax facet.Axis) *frame.Frame {
	labels := p.RowLabels
	if ax == facet.Columns {
		labels = p.ColLabels
	}
	f := frame.New(len(labels))
	if err := f.Add(frame.NewString(".label", labels)); err != nil {
		panic(err)
	}
	return f
}

// AxisMetadata implements plotstream.Provider.
func (p *StaticProvider) AxisMetadata(col, row int) (axis.Range, error) {
	r, ok := p.Ranges[axis.Cell{Col: col, Row: row}]
	if !ok {
		return axis.Range{}, &axis.MissingRangeError{Cell: axis.Cell{Col: col, Row: row}}
	}
	return r, nil
}

// ColorScaleMetadata implements plotstream.Provider.
func (p *StaticProvider) ColorScaleMetadata() colorscale.Metadata {
	return p.Scale
}

// QueryChunk implements plotstream.Provider. Only exact range matches are
// served.
func (p *StaticProvider) QueryChunk(_ context.Context, rng frame.Range) (*frame.Frame, error) {
	f, ok := p.Chunks[rng]
	if !ok {
		return nil, fmt.Errorf("testutil: no chunk for rows %s", rng)
	}
	return f, nil
}

var _ plotstream.Provider = (*StaticProvider)(nil)
