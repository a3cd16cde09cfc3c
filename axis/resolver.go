package axis

import (
	"context"
	"fmt"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// TableColumns names the columns of a range table.
type TableColumns struct {
	Col       string
	Row       string
	Min       string
	Max       string
	Transform string
}

// DefaultTableColumns returns the conventional range table column names.
func DefaultTableColumns() TableColumns {
	return TableColumns{
		Col:       ".ci",
		Row:       ".ri",
		Min:       ".min",
		Max:       ".max",
		Transform: ".transform",
	}
}

// LoadTable decodes a range table into a cell-keyed map. Facet indices in the
// table are original indices; they are remapped through the page's facet
// indexes at load time, and entries referencing groups outside the page are
// skipped. The transform column is optional.
func LoadTable(f *frame.Frame, cols TableColumns, colIdx, rowIdx *facet.Index) (map[Cell]Range, error) {
	colC, err := f.Int32(cols.Col)
	if err != nil {
		return nil, fmt.Errorf("axis: range table: %w", err)
	}
	rowC, err := f.Int32(cols.Row)
	if err != nil {
		return nil, fmt.Errorf("axis: range table: %w", err)
	}
	minC, err := f.Float64(cols.Min)
	if err != nil {
		return nil, fmt.Errorf("axis: range table: %w", err)
	}
	maxC, err := f.Float64(cols.Max)
	if err != nil {
		return nil, fmt.Errorf("axis: range table: %w", err)
	}

	var trC *frame.Column
	if cols.Transform != "" && f.Has(cols.Transform) {
		trC, err = f.Strings(cols.Transform)
		if err != nil {
			return nil, fmt.Errorf("axis: range table: %w", err)
		}
	}

	table := make(map[Cell]Range, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		if !colC.IsValid(i) || !rowC.IsValid(i) {
			return nil, fmt.Errorf("axis: range table row %d has a missing facet index", i)
		}

		colGrid, ok := colIdx.OriginalToGrid(int(colC.I32[i]))
		if !ok {
			continue
		}
		rowGrid, ok := rowIdx.OriginalToGrid(int(rowC.I32[i]))
		if !ok {
			continue
		}
		cell := Cell{Col: colGrid, Row: rowGrid}
		if _, dup := table[cell]; dup {
			return nil, fmt.Errorf("axis: duplicate range table entry for cell %s (row %d)", cell, i)
		}

		if !minC.IsValid(i) || !maxC.IsValid(i) {
			return nil, fmt.Errorf("axis: range table row %d has a missing bound for cell %s", i, cell)
		}

		var tr *Transform
		if trC != nil && trC.IsValid(i) {
			tr, err = ParseTransform(trC.Str[i])
			if err != nil {
				return nil, fmt.Errorf("axis: range table row %d: %w", i, err)
			}
		}

		r := NumericTransformed(minC.F64[i], maxC.F64[i], tr)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("axis: range table cell %s: %w", cell, err)
		}
		table[cell] = r
	}
	return table, nil
}

// FallbackFunc computes a range for a cell the range table does not cover,
// typically by scanning the source data.
type FallbackFunc func(ctx context.Context, cell Cell) (Range, error)

// Resolver serves per-cell ranges, preferring the range table and falling
// back to at most one scan per cell.
type Resolver struct {
	table    map[Cell]Range
	fallback FallbackFunc
	memo     *cache.Cache
	flight   singleflight.Group
}

// NewResolver creates a resolver over a loaded range table. fallback may be
// nil, in which case uncovered cells fail with MissingRangeError.
func NewResolver(table map[Cell]Range, fallback FallbackFunc) *Resolver {
	return &Resolver{
		table:    table,
		fallback: fallback,
		memo:     cache.New(cache.NoExpiration, 0),
	}
}

// Resolve returns the range for a cell. Fallback scans run at most once per
// cell; concurrent resolves of the same cell share one scan.
func (r *Resolver) Resolve(ctx context.Context, cell Cell) (Range, error) {
	if rng, ok := r.table[cell]; ok {
		return rng, nil
	}
	if v, ok := r.memo.Get(cell.String()); ok {
		return v.(Range), nil
	}
	if r.fallback == nil {
		return Range{}, &MissingRangeError{Cell: cell}
	}

	v, err, _ := r.flight.Do(cell.String(), func() (interface{}, error) {
		rng, err := r.fallback(ctx, cell)
		if err != nil {
			return nil, err
		}
		if err := rng.Validate(); err != nil {
			return nil, fmt.Errorf("axis: fallback range for cell %s: %w", cell, err)
		}
		r.memo.Set(cell.String(), rng, cache.NoExpiration)
		return rng, nil
	})
	if err != nil {
		return Range{}, err
	}
	return v.(Range), nil
}

// Preload resolves a set of cells ahead of streaming, bounding concurrent
// fallback scans.
func (r *Resolver) Preload(ctx context.Context, cells []Cell) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, cell := range cells {
		g.Go(func() error {
			_, err := r.Resolve(ctx, cell)
			return err
		})
	}
	return g.Wait()
}
