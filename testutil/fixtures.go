package testutil

import (
	"fmt"
	"sort"

	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/quantize"
)

// FacetTable builds a facet metadata frame with a ".label" column and one
// String factor column per map entry. Every factor slice must match the
// label count.
func FacetTable(labels []string, factors map[string][]string) *frame.Frame {
	f := frame.New(len(labels))
	if err := f.Add(frame.NewString(".label", labels)); err != nil {
		panic(err)
	}

	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.Add(frame.NewString(name, factors[name])); err != nil {
			panic(err)
		}
	}
	return f
}

// RangeTable builds a precomputed range table frame from cell ranges keyed
// by original facet indices, with the conventional column names. Rows are
// emitted in (row, col) order.
func RangeTable(ranges map[axis.Cell]axis.Range) *frame.Frame {
	cells := make([]axis.Cell, 0, len(ranges))
	for cell := range ranges {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})

	cis := make([]int32, len(cells))
	ris := make([]int32, len(cells))
	mins := make([]float64, len(cells))
	maxs := make([]float64, len(cells))
	trs := make([]string, len(cells))
	for i, cell := range cells {
		r := ranges[cell]
		cis[i] = int32(cell.Col)
		ris[i] = int32(cell.Row)
		mins[i] = r.Min
		maxs[i] = r.Max
		trs[i] = r.Transform.String()
	}

	f := frame.New(len(cells))
	for _, c := range []frame.Column{
		frame.NewInt32(".ci", cis),
		frame.NewInt32(".ri", ris),
		frame.NewFloat64(".min", mins),
		frame.NewFloat64(".max", maxs),
		frame.NewString(".transform", trs),
	} {
		if err := f.Add(c); err != nil {
			panic(err)
		}
	}
	return f
}

// ScatterRow is one data point of a quantized scatter fixture. Row and Col
// are original facet indices.
type ScatterRow struct {
	Row   int
	Col   int
	X     float64
	Y     float64
	Layer int32
}

// ScatterTable builds a data table frame from scatter points, quantizing X
// and Y against each point's cell range. ranges is keyed by original facet
// indices and must cover every point's cell. Columns: ".ri", ".ci" (Int32
// original indices), ".x", ".y" (Uint16 codes), ".layer" (Int32), and ".v"
// (Float64 raw X values, usable for fallback range scans).
func ScatterTable(rows []ScatterRow, ranges map[axis.Cell]axis.Range) (*frame.Frame, error) {
	params := make(map[axis.Cell]quantize.Params, len(ranges))
	for cell, r := range ranges {
		p, err := quantize.Compile(r)
		if err != nil {
			return nil, fmt.Errorf("testutil: cell %s: %w", cell, err)
		}
		params[cell] = p
	}

	ris := make([]int32, len(rows))
	cis := make([]int32, len(rows))
	xs := make([]uint16, len(rows))
	ys := make([]uint16, len(rows))
	layers := make([]int32, len(rows))
	vals := make([]float64, len(rows))
	for i, row := range rows {
		cell := axis.Cell{Col: row.Col, Row: row.Row}
		p, ok := params[cell]
		if !ok {
			return nil, fmt.Errorf("testutil: no range for cell %s", cell)
		}
		ris[i] = int32(row.Row)
		cis[i] = int32(row.Col)
		xs[i] = p.Quantize(row.X)
		ys[i] = p.Quantize(row.Y)
		layers[i] = row.Layer
		vals[i] = row.X
	}

	f := frame.New(len(rows))
	for _, c := range []frame.Column{
		frame.NewInt32(".ri", ris),
		frame.NewInt32(".ci", cis),
		frame.NewUint16(".x", xs),
		frame.NewUint16(".y", ys),
		frame.NewInt32(".layer", layers),
		frame.NewFloat64(".v", vals),
	} {
		if err := f.Add(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}
