package plotstream_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plotstream "github.com/tercen/ggrs-plot-operator-sub000"
	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/colorscale"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/testutil"
)

// sexGroups builds n row facet groups, the first half discriminated
// sex=female, the second half sex=male.
func sexGroups(n int) []facet.Group {
	groups := make([]facet.Group, n)
	for i := range groups {
		sex := "female"
		if i >= n/2 {
			sex = "male"
		}
		groups[i] = facet.Group{
			Original:       i,
			Label:          fmt.Sprintf("r%d", i),
			Discriminators: map[string]string{"sex": sex},
		}
	}
	return groups
}

func oneColGroup() []facet.Group {
	return []facet.Group{{Original: 0, Label: "c0"}}
}

// scatterFixture builds a 24-row-facet scatter plot: two points per facet,
// x values equal to the facet's original index, ranges 0..100 per cell.
func scatterFixture(t *testing.T) (*testutil.MemSource, plotstream.Config) {
	t.Helper()

	const facets = 24
	ranges := make(map[axis.Cell]axis.Range, facets)
	var rows []testutil.ScatterRow
	for r := 0; r < facets; r++ {
		ranges[axis.Cell{Col: 0, Row: r}] = axis.Numeric(0, 100)
		rows = append(rows,
			testutil.ScatterRow{Row: r, Col: 0, X: float64(r), Y: 50, Layer: 0},
			testutil.ScatterRow{Row: r, Col: 0, X: float64(r) + 0.5, Y: 60, Layer: 1},
		)
	}
	data, err := testutil.ScatterTable(rows, ranges)
	require.NoError(t, err)

	src := testutil.NewMemSource()
	src.Add("data", data)
	src.Add("ranges", testutil.RangeTable(ranges))

	cfg := plotstream.Config{
		Table:      "data",
		Session:    "sess-" + t.Name(),
		CacheRoot:  t.TempDir(),
		Columns:    plotstream.ColumnMapping{X: ".x", Y: ".y"},
		RowGroups:  sexGroups(facets),
		ColGroups:  oneColGroup(),
		RangeTable: "ranges",
	}
	return src, cfg
}

func fullRange(t *testing.T, a *plotstream.Adapter) frame.Range {
	t.Helper()
	return frame.Range{Start: 0, End: a.RowCount()}
}

func TestPageFilterReindexesFacets(t *testing.T) {
	src, cfg := scatterFixture(t)
	cfg.PageFilter = map[string]string{"sex": "male"}

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	require.Equal(t, 12, a.FacetCount(facet.Rows))
	require.Equal(t, 1, a.FacetCount(facet.Columns))

	labels := a.FacetLabels(facet.Rows)
	lc, err := labels.Strings(".label")
	require.NoError(t, err)
	// Grid order preserves original relative order: originals 12..23.
	for i, label := range lc.Str {
		assert.Equal(t, fmt.Sprintf("r%d", i+12), label)
	}

	chunk, err := a.QueryChunk(context.Background(), fullRange(t, a))
	require.NoError(t, err)
	assert.Equal(t, 24, chunk.NumRows(), "two points per male facet survive the mask")

	ri, err := chunk.Int32(".ri")
	require.NoError(t, err)
	x, err := chunk.Float64(".x")
	require.NoError(t, err)
	for i, grid := range ri.I32 {
		assert.GreaterOrEqual(t, grid, int32(0))
		assert.Less(t, grid, int32(12), "row facet values are page grid indices")
		// x was the original index, so it identifies the group.
		assert.InDelta(t, float64(grid+12), x.F64[i], 0.51)
	}

	color, err := chunk.Uint32(".color")
	require.NoError(t, err)
	assert.Equal(t, chunk.NumRows(), color.Len())
}

func TestDequantizeEndpointsExact(t *testing.T) {
	ranges := map[axis.Cell]axis.Range{{Col: 0, Row: 0}: axis.Numeric(-5, 7)}
	data, err := testutil.ScatterTable([]testutil.ScatterRow{
		{Row: 0, Col: 0, X: -5, Y: 7},
		{Row: 0, Col: 0, X: 7, Y: -5},
	}, ranges)
	require.NoError(t, err)

	src := testutil.NewMemSource()
	src.Add("data", data)
	src.Add("ranges", testutil.RangeTable(ranges))

	cfg := plotstream.Config{
		Table:      "data",
		Session:    "sess-endpoints",
		CacheRoot:  t.TempDir(),
		Columns:    plotstream.ColumnMapping{X: ".x", Y: ".y"},
		RowGroups:  []facet.Group{{Original: 0, Label: "r0"}},
		ColGroups:  oneColGroup(),
		RangeTable: "ranges",
	}
	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	chunk, err := a.QueryChunk(context.Background(), frame.Range{Start: 0, End: 2})
	require.NoError(t, err)

	x, err := chunk.Float64(".x")
	require.NoError(t, err)
	y, err := chunk.Float64(".y")
	require.NoError(t, err)
	assert.Equal(t, []float64{-5, 7}, x.F64, "end codes decode exactly")
	assert.Equal(t, []float64{7, -5}, y.F64)
}

func TestChunkFetchedAtMostOnce(t *testing.T) {
	src, cfg := scatterFixture(t)

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	rng := frame.Range{Start: 0, End: 10}
	first, err := a.QueryChunk(context.Background(), rng)
	require.NoError(t, err)
	require.Equal(t, 1, src.Fetches("data"))

	second, err := a.QueryChunk(context.Background(), rng)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Fetches("data"), "second query is served from the store")

	assert.Equal(t, first.NumRows(), second.NumRows())
	assert.Equal(t, first.Names(), second.Names(), "cached chunks carry the same column set, color included")
}

func TestColorPerLayerOverridesShared(t *testing.T) {
	src, cfg := scatterFixture(t)

	red, err := colorscale.ParseHex("#ff0000")
	require.NoError(t, err)
	shared, err := colorscale.NewContinuous([]colorscale.Stop{
		{Value: 0, Color: 0x000000},
		{Value: 100, Color: 0xffffff},
	})
	require.NoError(t, err)

	cfg.Colors = colorscale.Config{
		LayerColumn: ".layer",
		PerLayer: map[int32]colorscale.Assignment{
			1: {
				Kind:        colorscale.KindCategorical,
				Categorical: colorscale.NewCategorical(map[int32]colorscale.RGB{1: red}, 0x112233),
				Column:      ".layer",
			},
		},
		Shared: &colorscale.Assignment{Kind: colorscale.KindContinuous, Continuous: shared, Column: ".v"},
	}

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	chunk, err := a.QueryChunk(context.Background(), fullRange(t, a))
	require.NoError(t, err)

	layer, err := chunk.Int32(".layer")
	require.NoError(t, err)
	color, err := chunk.Uint32(".color")
	require.NoError(t, err)

	sawShared := false
	for i := range layer.I32 {
		if layer.I32[i] == 1 {
			assert.Equal(t, uint32(red), color.U32[i], "layer assignment wins for its rows")
		} else {
			assert.NotEqual(t, uint32(red), color.U32[i], "other layers fall through to the shared scale")
			sawShared = true
		}
	}
	assert.True(t, sawShared)
}

func TestColorCategoricalDefault(t *testing.T) {
	src, cfg := scatterFixture(t)

	green, err := colorscale.ParseHex("#00aa00")
	require.NoError(t, err)
	gray, err := colorscale.ParseHex("#7f7f7f")
	require.NoError(t, err)

	cfg.Colors = colorscale.Config{
		Shared: &colorscale.Assignment{
			Kind:        colorscale.KindCategorical,
			Categorical: colorscale.NewCategorical(map[int32]colorscale.RGB{0: green}, gray),
			Column:      ".layer",
		},
	}

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	chunk, err := a.QueryChunk(context.Background(), fullRange(t, a))
	require.NoError(t, err)

	layer, err := chunk.Int32(".layer")
	require.NoError(t, err)
	color, err := chunk.Uint32(".color")
	require.NoError(t, err)
	for i := range layer.I32 {
		want := gray
		if layer.I32[i] == 0 {
			want = green
		}
		assert.Equal(t, uint32(want), color.U32[i], "unmapped levels resolve to the default, not an error")
	}
}

func TestFetchFailurePropagates(t *testing.T) {
	src, cfg := scatterFixture(t)

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	src.FailNext(boom)

	_, err = a.QueryChunk(context.Background(), frame.Range{Start: 0, End: 10})
	var fe *plotstream.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "data", fe.Table)
	assert.Equal(t, frame.Range{Start: 0, End: 10}, fe.Range)
	assert.ErrorIs(t, err, boom)
}

func TestMissingRangeIsFatal(t *testing.T) {
	src, cfg := scatterFixture(t)
	cfg.RangeTable = "" // no range table, no fallback value column

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	_, err = a.QueryChunk(context.Background(), frame.Range{Start: 0, End: 10})
	var missing *axis.MissingRangeError
	require.ErrorAs(t, err, &missing)
}

func TestFallbackScanRunsOncePerCell(t *testing.T) {
	src, cfg := scatterFixture(t)
	cfg.RangeTable = ""
	cfg.Columns.Value = ".v"
	cfg.PageFilter = map[string]string{"sex": "female"}

	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	// First chunk: one data fetch plus one scan pass for the touched cell.
	chunk, err := a.QueryChunk(context.Background(), frame.Range{Start: 0, End: 1})
	require.NoError(t, err)
	require.Equal(t, 1, chunk.NumRows())
	afterFirst := src.Fetches("data")
	require.Greater(t, afterFirst, 1)

	// Second chunk touches the same cell: exactly one more fetch, no rescan.
	_, err = a.QueryChunk(context.Background(), frame.Range{Start: 1, End: 2})
	require.NoError(t, err)
	assert.Equal(t, afterFirst+1, src.Fetches("data"))

	// Metadata reads reuse the memoized range too.
	r, err := a.AxisMetadata(0, 0)
	require.NoError(t, err)
	assert.Equal(t, axis.KindNumeric, r.Kind)
	assert.Equal(t, float64(0), r.Min)
	assert.Equal(t, afterFirst+1, src.Fetches("data"))
}

func TestHeatmapBypassesDequantization(t *testing.T) {
	groups := sexGroups(4)
	data := frame.New(4)
	require.NoError(t, data.Add(frame.NewInt32(".ri", []int32{0, 1, 2, 3})))
	require.NoError(t, data.Add(frame.NewInt32(".ci", []int32{0, 0, 0, 0})))

	src := testutil.NewMemSource()
	src.Add("data", data)

	cfg := plotstream.Config{
		Table:     "data",
		Session:   "sess-heatmap",
		CacheRoot: t.TempDir(),
		RowGroups: groups,
		ColGroups: oneColGroup(),
		Heatmap:   true,
	}
	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	r, err := a.AxisMetadata(0, 0)
	require.NoError(t, err)
	require.Equal(t, axis.KindCategorical, r.Kind)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, r.Levels)

	chunk, err := a.QueryChunk(context.Background(), frame.Range{Start: 0, End: 4})
	require.NoError(t, err)
	ri, err := chunk.Int32(".ri")
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2, 3}, ri.I32, "grid indices are the positions")
}

func TestAxisMetadataOutsideGrid(t *testing.T) {
	src, cfg := scatterFixture(t)
	a, err := plotstream.New(context.Background(), src, cfg)
	require.NoError(t, err)

	_, err = a.AxisMetadata(1, 0)
	assert.Error(t, err)
	_, err = a.AxisMetadata(0, 24)
	assert.Error(t, err)
}

func TestConfigurationErrors(t *testing.T) {
	src, cfg := scatterFixture(t)

	t.Run("unmapped column", func(t *testing.T) {
		bad := cfg
		bad.Columns.X = ".nope"
		_, err := plotstream.New(context.Background(), src, bad)
		var unmapped *plotstream.UnmappedColumnError
		require.ErrorAs(t, err, &unmapped)
		assert.Equal(t, ".nope", unmapped.Column)
	})

	t.Run("filter matches nothing", func(t *testing.T) {
		bad := cfg
		bad.PageFilter = map[string]string{"sex": "unknown"}
		_, err := plotstream.New(context.Background(), src, bad)
		var noMatch *facet.NoGroupsMatchError
		require.ErrorAs(t, err, &noMatch)
	})

	t.Run("no table", func(t *testing.T) {
		bad := cfg
		bad.Table = ""
		_, err := plotstream.New(context.Background(), src, bad)
		assert.ErrorIs(t, err, plotstream.ErrNoTable)
	})

	t.Run("no session", func(t *testing.T) {
		bad := cfg
		bad.Session = ""
		_, err := plotstream.New(context.Background(), src, bad)
		assert.ErrorIs(t, err, plotstream.ErrNoSession)
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := plotstream.New(context.Background(), nil, cfg)
		assert.ErrorIs(t, err, plotstream.ErrNoSource)
	})
}

func TestMetricsCollected(t *testing.T) {
	src, cfg := scatterFixture(t)

	metrics := &plotstream.BasicMetricsCollector{}
	a, err := plotstream.New(context.Background(), src, cfg, plotstream.WithMetricsCollector(metrics))
	require.NoError(t, err)

	rng := frame.Range{Start: 0, End: 10}
	_, err = a.QueryChunk(context.Background(), rng)
	require.NoError(t, err)
	_, err = a.QueryChunk(context.Background(), rng)
	require.NoError(t, err)

	stats := metrics.Snapshot()
	assert.Equal(t, int64(2), stats.ChunkQueryCount)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Equal(t, int64(1), stats.CacheWriteCount)
	assert.Greater(t, stats.CacheWriteBytes, int64(0))
}
