package plotstream

import (
	"context"
	"fmt"
	"time"

	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/quantize"
)

// fallbackScanWindow bounds how many rows one fallback fetch reads.
const fallbackScanWindow = 1 << 16

// QueryChunk implements Provider. The range is clamped to the table's row
// count; the prepared chunk is served from the store when present, filled
// through the pipeline otherwise, and colored freshly either way.
func (a *Adapter) QueryChunk(ctx context.Context, rng frame.Range) (*frame.Frame, error) {
	start := time.Now()
	f, err := a.queryChunk(ctx, rng)
	rows := 0
	if f != nil {
		rows = f.NumRows()
	}
	a.metrics.RecordChunkQuery(rows, time.Since(start), err)
	a.logger.LogChunkQuery(ctx, rng, rows, time.Since(start), err)
	return f, err
}

func (a *Adapter) queryChunk(ctx context.Context, rng frame.Range) (*frame.Frame, error) {
	if rng.End > a.rowCount {
		rng.End = a.rowCount
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if rng.Start >= a.rowCount {
		return nil, fmt.Errorf("plotstream: rows %s start past table %q end %d", rng, a.cfg.Table, a.rowCount)
	}

	f, ok, err := a.store.Get(a.cacheID, rng)
	if err != nil {
		return nil, err
	}
	if ok {
		a.metrics.RecordCacheHit()
		a.logger.LogCacheHit(ctx, rng)
	} else {
		a.metrics.RecordCacheMiss()
		a.logger.LogCacheMiss(ctx, rng)

		f, err = a.fill(ctx, rng)
		if err != nil {
			return nil, err
		}
		bytes, err := a.store.Put(a.cacheID, rng, f)
		a.metrics.RecordCacheWrite(bytes, err)
		a.logger.LogCacheWrite(ctx, rng, bytes, err)
		if err != nil {
			return nil, err
		}
	}

	// Colors depend on the active layer configuration, not only on raw
	// data, so the color column is appended after the cache on both paths.
	color, err := a.colors.Resolve(f)
	if err != nil {
		return nil, err
	}
	if err := f.Add(color); err != nil {
		return nil, err
	}
	return f, nil
}

// fill runs the miss path: fetch, facet-membership masking, original-to-grid
// remapping, and dequantization. The result is the pre-color chunk the store
// persists.
func (a *Adapter) fill(ctx context.Context, rng frame.Range) (*frame.Frame, error) {
	raw, err := a.fetch(ctx, a.cfg.Table, a.columns, rng)
	if err != nil {
		return nil, err
	}

	rowC, err := raw.Int32(a.cfg.Columns.RowFacet)
	if err != nil {
		return nil, fmt.Errorf("plotstream: chunk %s: %w", rng, err)
	}
	colC, err := raw.Int32(a.cfg.Columns.ColFacet)
	if err != nil {
		return nil, fmt.Errorf("plotstream: chunk %s: %w", rng, err)
	}

	rowMembers := a.rowIdx.Members()
	colMembers := a.colIdx.Members()
	keep := make([]uint32, 0, raw.NumRows())
	for i := 0; i < raw.NumRows(); i++ {
		if !rowC.IsValid(i) {
			return nil, &MissingFacetError{Column: rowC.Name, Row: rng.Start + int64(i)}
		}
		if !colC.IsValid(i) {
			return nil, &MissingFacetError{Column: colC.Name, Row: rng.Start + int64(i)}
		}
		if rowC.I32[i] < 0 || colC.I32[i] < 0 {
			return nil, &MissingFacetError{Column: rowC.Name, Row: rng.Start + int64(i)}
		}
		// Rows of groups outside the page belong to another page.
		if !rowMembers.Contains(uint32(rowC.I32[i])) || !colMembers.Contains(uint32(colC.I32[i])) {
			continue
		}
		keep = append(keep, uint32(i))
	}
	chunk := raw.Take(keep)

	rowGrid, err := a.remap(chunk, a.cfg.Columns.RowFacet, facetRows)
	if err != nil {
		return nil, err
	}
	colGrid, err := a.remap(chunk, a.cfg.Columns.ColFacet, facetCols)
	if err != nil {
		return nil, err
	}

	if !a.cfg.Heatmap {
		cells, table, err := a.chunkParams(ctx, colGrid, rowGrid)
		if err != nil {
			return nil, err
		}
		for _, name := range []string{a.cfg.Columns.X, a.cfg.Columns.Y} {
			if name == "" {
				continue
			}
			if err := a.dequantize(chunk, name, cells, table); err != nil {
				return nil, err
			}
		}
	}
	return chunk, nil
}

func (a *Adapter) fetch(ctx context.Context, table string, columns []string, rng frame.Range) (*frame.Frame, error) {
	start := time.Now()
	f, err := a.src.FetchColumns(ctx, table, columns, rng)
	rows := 0
	if f != nil {
		rows = f.NumRows()
	}
	a.metrics.RecordFetch(rows, time.Since(start), err)
	a.logger.LogFetch(ctx, rng, rows, time.Since(start), err)
	if err != nil {
		return nil, &FetchError{Table: table, Range: rng, cause: err}
	}
	return f, nil
}

type facetSide uint8

const (
	facetRows facetSide = iota
	facetCols
)

// remap rewrites a facet column in place from original to grid indices and
// returns the grid values. Masking already dropped off-page rows, so every
// original must map.
func (a *Adapter) remap(chunk *frame.Frame, name string, side facetSide) ([]int32, error) {
	idx := a.rowIdx
	if side == facetCols {
		idx = a.colIdx
	}
	c, err := chunk.Int32(name)
	if err != nil {
		return nil, err
	}
	grid := make([]int32, len(c.I32))
	for i, orig := range c.I32 {
		g, ok := idx.OriginalToGrid(int(orig))
		if !ok {
			return nil, fmt.Errorf("plotstream: column %q row %d: original facet index %d escaped the page mask", name, i, orig)
		}
		grid[i] = int32(g)
	}
	if err := chunk.Replace(frame.NewInt32(name, grid)); err != nil {
		return nil, err
	}
	return grid, nil
}

// chunkParams resolves the decoding parameters of every cell the chunk
// touches and returns a per-row parameter index alongside the table.
func (a *Adapter) chunkParams(ctx context.Context, colGrid, rowGrid []int32) ([]uint32, []quantize.Params, error) {
	ids := make(map[axis.Cell]uint32)
	cells := make([]uint32, len(rowGrid))
	var table []quantize.Params

	for i := range rowGrid {
		cell := axis.Cell{Col: int(colGrid[i]), Row: int(rowGrid[i])}
		id, ok := ids[cell]
		if !ok {
			p, err := a.cellParams(ctx, cell)
			if err != nil {
				return nil, nil, err
			}
			id = uint32(len(table))
			ids[cell] = id
			table = append(table, p)
		}
		cells[i] = id
	}
	return cells, table, nil
}

// cellParams memoizes one compiled parameter set per cell for the adapter's
// lifetime.
func (a *Adapter) cellParams(ctx context.Context, cell axis.Cell) (quantize.Params, error) {
	if p, ok := a.params[cell]; ok {
		return p, nil
	}
	rng, err := a.resolver.Resolve(ctx, cell)
	if err != nil {
		return quantize.Params{}, err
	}
	p, err := quantize.Compile(rng)
	if err != nil {
		return quantize.Params{}, fmt.Errorf("plotstream: cell %s: %w", cell, err)
	}
	a.params[cell] = p
	return p, nil
}

// dequantize replaces a quantized coordinate column with its decoded Float64
// values, keeping validity bits so missing codes stay missing.
func (a *Adapter) dequantize(chunk *frame.Frame, name string, cells []uint32, table []quantize.Params) error {
	c, err := chunk.Column(name)
	if err != nil {
		return fmt.Errorf("plotstream: coordinate column: %w", err)
	}
	qc, err := c.AsUint16()
	if err != nil {
		return err
	}
	dst := make([]float64, len(qc.U16))
	if err := quantize.Apply(dst, qc.U16, cells, table, qc.Valid); err != nil {
		return err
	}
	out := frame.Column{Name: name, Type: frame.TypeFloat64, F64: dst, Valid: qc.Valid}
	return chunk.Replace(out)
}

// scanRange is the resolver fallback: one O(rows) pass over the data table
// aggregating the value column's bounds for a cell.
func (a *Adapter) scanRange(ctx context.Context, cell axis.Cell) (axis.Range, error) {
	start := time.Now()
	rng, err := a.scanRangeSlow(ctx, cell)
	a.metrics.RecordRangeFallback(time.Since(start), err)
	a.logger.LogRangeFallback(ctx, cell.String(), time.Since(start), err)
	return rng, err
}

func (a *Adapter) scanRangeSlow(ctx context.Context, cell axis.Cell) (axis.Range, error) {
	cols := []string{a.cfg.Columns.RowFacet, a.cfg.Columns.ColFacet, a.cfg.Columns.Value}

	var lo, hi float64
	found := false
	for offset := int64(0); offset < a.rowCount; offset += fallbackScanWindow {
		end := offset + fallbackScanWindow
		if end > a.rowCount {
			end = a.rowCount
		}
		w, err := a.fetch(ctx, a.cfg.Table, cols, frame.Range{Start: offset, End: end})
		if err != nil {
			return axis.Range{}, err
		}
		rowC, err := w.Int32(a.cfg.Columns.RowFacet)
		if err != nil {
			return axis.Range{}, err
		}
		colC, err := w.Int32(a.cfg.Columns.ColFacet)
		if err != nil {
			return axis.Range{}, err
		}
		valC, err := w.Float64(a.cfg.Columns.Value)
		if err != nil {
			return axis.Range{}, err
		}

		for i := 0; i < w.NumRows(); i++ {
			if !rowC.IsValid(i) || !colC.IsValid(i) || !valC.IsValid(i) {
				continue
			}
			rowGrid, ok := a.rowIdx.OriginalToGrid(int(rowC.I32[i]))
			if !ok || rowGrid != cell.Row {
				continue
			}
			colGrid, ok := a.colIdx.OriginalToGrid(int(colC.I32[i]))
			if !ok || colGrid != cell.Col {
				continue
			}
			v := valC.F64[i]
			if !found || v < lo {
				lo = v
			}
			if !found || v > hi {
				hi = v
			}
			found = true
		}
	}
	if !found {
		return axis.Range{}, fmt.Errorf("plotstream: cell %s has no %q values to derive a range from", cell, a.cfg.Columns.Value)
	}
	return axis.Numeric(lo, hi), nil
}
