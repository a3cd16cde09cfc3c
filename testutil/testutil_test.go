package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/colorscale"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

func TestMemSourceSchema(t *testing.T) {
	src := NewMemSource()
	src.Add("t", FacetTable([]string{"a", "b"}, map[string][]string{"sex": {"f", "m"}}))

	sch, err := src.Schema(context.Background(), "t")
	require.NoError(t, err)

	assert.Equal(t, int64(2), sch.RowCount)
	assert.True(t, sch.Has(".label"))
	assert.True(t, sch.Has("sex"))

	_, err = src.Schema(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemSourceFetchWindow(t *testing.T) {
	f := frame.New(5)
	require.NoError(t, f.Add(frame.NewInt32("a", []int32{0, 1, 2, 3, 4})))
	require.NoError(t, f.Add(frame.NewInt32("b", []int32{5, 6, 7, 8, 9})))

	src := NewMemSource()
	src.Add("t", f)

	got, err := src.FetchColumns(context.Background(), "t", []string{"b"}, frame.Range{Start: 1, End: 3})
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	assert.Equal(t, 1, got.NumCols())

	b, err := got.Int32("b")
	require.NoError(t, err)
	assert.Equal(t, []int32{6, 7}, b.I32)

	// Windows past the end are clamped.
	got, err = src.FetchColumns(context.Background(), "t", []string{"a"}, frame.Range{Start: 3, End: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumRows())

	assert.Equal(t, 2, src.Fetches("t"))
}

func TestMemSourceFailNext(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.Add(frame.NewInt32("a", []int32{0})))

	src := NewMemSource()
	src.Add("t", f)

	boom := errors.New("boom")
	src.FailNext(boom)

	_, err := src.FetchColumns(context.Background(), "t", []string{"a"}, frame.Range{Start: 0, End: 1})
	assert.ErrorIs(t, err, boom)

	// Only the next fetch fails.
	_, err = src.FetchColumns(context.Background(), "t", []string{"a"}, frame.Range{Start: 0, End: 1})
	assert.NoError(t, err)
}

func TestScatterTableQuantizesEndpoints(t *testing.T) {
	ranges := map[axis.Cell]axis.Range{
		{Col: 0, Row: 0}: axis.Numeric(10, 20),
	}
	f, err := ScatterTable([]ScatterRow{
		{Row: 0, Col: 0, X: 10, Y: 20},
		{Row: 0, Col: 0, X: 20, Y: 10},
	}, ranges)
	require.NoError(t, err)

	x, err := f.Uint16(".x")
	require.NoError(t, err)
	y, err := f.Uint16(".y")
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 65535}, x.U16)
	assert.Equal(t, []uint16{65535, 0}, y.U16)

	v, err := f.Float64(".v")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, v.F64)
}

func TestScatterTableUncoveredCell(t *testing.T) {
	_, err := ScatterTable([]ScatterRow{{Row: 3, Col: 0}}, map[axis.Cell]axis.Range{})
	assert.Error(t, err)
}

func TestRangeTableColumns(t *testing.T) {
	f := RangeTable(map[axis.Cell]axis.Range{
		{Col: 0, Row: 1}: axis.Numeric(0, 1),
		{Col: 0, Row: 0}: axis.NumericTransformed(1, 100, &axis.Transform{Kind: axis.Log}),
	})
	require.Equal(t, 2, f.NumRows())

	ri, err := f.Int32(".ri")
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, ri.I32)

	tr, err := f.Strings(".transform")
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "identity"}, tr.Str)
}

func TestStaticProvider(t *testing.T) {
	chunk := frame.New(1)
	require.NoError(t, chunk.Add(frame.NewInt32(".ri", []int32{0})))

	p := &StaticProvider{
		RowLabels: []string{"r0", "r1"},
		ColLabels: []string{"c0"},
		Ranges: map[axis.Cell]axis.Range{
			{Col: 0, Row: 0}: axis.Numeric(0, 1),
		},
		Scale:  colorscale.Metadata{Kind: colorscale.KindNone},
		Chunks: map[frame.Range]*frame.Frame{{Start: 0, End: 1}: chunk},
	}

	assert.Equal(t, 2, p.FacetCount(facet.Rows))
	assert.Equal(t, 1, p.FacetCount(facet.Columns))

	labels := p.FacetLabels(facet.Rows)
	c, err := labels.Strings(".label")
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1"}, c.Str)

	_, err = p.AxisMetadata(0, 0)
	assert.NoError(t, err)
	_, err = p.AxisMetadata(0, 1)
	var missing *axis.MissingRangeError
	assert.ErrorAs(t, err, &missing)

	got, err := p.QueryChunk(context.Background(), frame.Range{Start: 0, End: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumRows())

	_, err = p.QueryChunk(context.Background(), frame.Range{Start: 1, End: 2})
	assert.Error(t, err)
}
