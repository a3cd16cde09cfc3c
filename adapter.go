package plotstream

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tercen/ggrs-plot-operator-sub000/axis"
	"github.com/tercen/ggrs-plot-operator-sub000/chunkstore"
	"github.com/tercen/ggrs-plot-operator-sub000/colorscale"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/quantize"
	"github.com/tercen/ggrs-plot-operator-sub000/tablesource"
)

// Provider is the query contract a renderer consumes. Adapter is the
// production implementation; tests may substitute their own.
type Provider interface {
	// FacetCount returns the number of facet groups on one axis of the
	// current page.
	FacetCount(ax facet.Axis) int

	// FacetLabels returns the page's group labels and discriminators for
	// one axis, one row per group in grid order.
	FacetLabels(ax facet.Axis) *frame.Frame

	// AxisMetadata returns the value range of the facet cell at the given
	// grid coordinates.
	AxisMetadata(col, row int) (axis.Range, error)

	// ColorScaleMetadata summarizes the plot-wide color scale for legends.
	ColorScaleMetadata() colorscale.Metadata

	// QueryChunk returns the prepared chunk for a row range of the data
	// table. Row facet and column facet values in the chunk are grid
	// indices of the current page.
	QueryChunk(ctx context.Context, rng frame.Range) (*frame.Frame, error)
}

// ColumnMapping names the data table columns the pipeline operates on.
type ColumnMapping struct {
	// RowFacet and ColFacet name the Int32 columns carrying original facet
	// indices. Empty selects ".ri" and ".ci".
	RowFacet string
	ColFacet string

	// X and Y name quantized coordinate columns. Either may be empty.
	X string
	Y string

	// Value names the Float64 column fallback range scans aggregate when a
	// cell is missing from the range table. Empty disables the fallback.
	Value string

	// Extra names passthrough columns fetched into every chunk, such as
	// color driving columns.
	Extra []string
}

func (m ColumnMapping) withDefaults() ColumnMapping {
	if m.RowFacet == "" {
		m.RowFacet = ".ri"
	}
	if m.ColFacet == "" {
		m.ColFacet = ".ci"
	}
	return m
}

// Config describes one plot for the adapter.
type Config struct {
	// Table is the data table id.
	Table string

	// Session scopes the on-disk chunk cache. Sessions never share cache
	// directories.
	Session string

	// CacheRoot is the parent directory of the session cache. Empty
	// selects the system temp directory.
	CacheRoot string

	// Columns maps the data table's columns onto pipeline roles.
	Columns ColumnMapping

	// RowGroups and ColGroups hold the full facet metadata of each axis.
	RowGroups []facet.Group
	ColGroups []facet.Group

	// PageFilter restricts the page to groups matching every entry, per
	// axis. Filter keys unknown to an axis's groups leave that axis
	// unfiltered. Nil renders everything on one page.
	PageFilter map[string]string

	// RangeTable optionally names the table of precomputed per-cell
	// ranges. Cells it misses fall back to scanning when Columns.Value is
	// set and fail otherwise.
	RangeTable string

	// RangeColumns names the range table's columns. The zero value selects
	// axis.DefaultTableColumns.
	RangeColumns axis.TableColumns

	// Heatmap marks discrete-axis plots. Heatmap chunks skip
	// dequantization; grid indices are both position and category.
	Heatmap bool

	// Colors describes the plot's color sources.
	Colors colorscale.Config
}

// Adapter implements Provider over a tablesource.Source for one page.
type Adapter struct {
	src     tablesource.Source
	cfg     Config
	logger  *Logger
	metrics MetricsCollector
	store   *chunkstore.Store

	rowIdx   *facet.Index
	colIdx   *facet.Index
	resolver *axis.Resolver
	colors   *colorscale.Resolver

	rowCount int64
	columns  []string

	// cacheID scopes cache entries per page. Masking and remapping are
	// page-relative, so an entry written under one page filter must never
	// serve another.
	cacheID string

	// params memoizes compiled dequantization parameters per cell, so the
	// resolver's fallback runs at most once per cell per adapter lifetime.
	params map[axis.Cell]quantize.Params
}

// New builds the adapter for one page. Construction loads the schema,
// validates the column mapping against it, builds both facet indexes, loads
// the range table when configured, and resolves the color configuration;
// every configuration error surfaces here.
func New(ctx context.Context, src tablesource.Source, cfg Config, opts ...Option) (*Adapter, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if cfg.Table == "" {
		return nil, ErrNoTable
	}
	cfg.Columns = cfg.Columns.withDefaults()

	o := applyOptions(opts...)
	if o.fetchRate > 0 {
		src = tablesource.NewRateLimited(src, o.fetchRate, o.fetchBurst)
	}

	a := &Adapter{
		src:     src,
		cfg:     cfg,
		logger:  o.logger.WithTable(cfg.Table),
		metrics: o.metrics,
		store:   o.store,
		params:  make(map[axis.Cell]quantize.Params),
	}

	sch, err := src.Schema(ctx, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("plotstream: schema of table %q: %w", cfg.Table, err)
	}
	a.rowCount = sch.RowCount

	a.columns = fetchList(cfg)
	for _, name := range a.columns {
		if !sch.Has(name) {
			return nil, &UnmappedColumnError{Table: cfg.Table, Column: name}
		}
	}

	a.rowIdx, err = facet.Build(cfg.RowGroups, filterFor(cfg.RowGroups, cfg.PageFilter))
	if err != nil {
		return nil, fmt.Errorf("plotstream: row facets: %w", err)
	}
	a.colIdx, err = facet.Build(cfg.ColGroups, filterFor(cfg.ColGroups, cfg.PageFilter))
	if err != nil {
		return nil, fmt.Errorf("plotstream: column facets: %w", err)
	}
	a.cacheID = cacheID(cfg.Table, cfg.PageFilter)

	table := map[axis.Cell]axis.Range{}
	if cfg.RangeTable != "" {
		table, err = a.loadRangeTable(ctx)
		if err != nil {
			return nil, err
		}
	}
	var fallback axis.FallbackFunc
	if cfg.Columns.Value != "" {
		fallback = a.scanRange
	}
	a.resolver = axis.NewResolver(table, fallback)

	a.colors, err = colorscale.NewResolver(cfg.Colors)
	if err != nil {
		return nil, err
	}

	if a.store == nil {
		if cfg.Session == "" {
			return nil, ErrNoSession
		}
		root := cfg.CacheRoot
		if root == "" {
			root = os.TempDir()
		}
		a.store, err = chunkstore.Open(root, cfg.Session, chunkstore.WithCompression(o.compression))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// fetchList collects every column a chunk needs, deduplicated in mapping
// order: facet indices, coordinates, layer and color driving columns, then
// passthroughs.
func fetchList(cfg Config) []string {
	var list []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		list = append(list, name)
	}

	add(cfg.Columns.RowFacet)
	add(cfg.Columns.ColFacet)
	add(cfg.Columns.X)
	add(cfg.Columns.Y)
	add(cfg.Colors.LayerColumn)
	layers := make([]int32, 0, len(cfg.Colors.PerLayer))
	for layer := range cfg.Colors.PerLayer {
		layers = append(layers, layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
	for _, layer := range layers {
		add(cfg.Colors.PerLayer[layer].Column)
	}
	if cfg.Colors.Shared != nil {
		add(cfg.Colors.Shared.Column)
	}
	for _, name := range cfg.Columns.Extra {
		add(name)
	}
	return list
}

// cacheID derives the store key's table component. Filtered pages get their
// own entries because masked, remapped chunks are meaningless to any other
// page.
func cacheID(table string, filter map[string]string) string {
	if len(filter) == 0 {
		return table
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	id := table
	for _, k := range keys {
		id += "@" + k + "=" + filter[k]
	}
	return id
}

// filterFor keeps the page filter entries an axis's groups actually use, so
// one filter can address both axes without excluding the other.
func filterFor(groups []facet.Group, filter map[string]string) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	known := make(map[string]struct{})
	for _, g := range groups {
		for k := range g.Discriminators {
			known[k] = struct{}{}
		}
	}
	out := make(map[string]string)
	for k, v := range filter {
		if _, ok := known[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (a *Adapter) loadRangeTable(ctx context.Context) (map[axis.Cell]axis.Range, error) {
	cols := a.cfg.RangeColumns
	if cols == (axis.TableColumns{}) {
		cols = axis.DefaultTableColumns()
	}

	sch, err := a.src.Schema(ctx, a.cfg.RangeTable)
	if err != nil {
		return nil, fmt.Errorf("plotstream: schema of range table %q: %w", a.cfg.RangeTable, err)
	}
	if sch.RowCount == 0 {
		return map[axis.Cell]axis.Range{}, nil
	}

	names := []string{cols.Col, cols.Row, cols.Min, cols.Max}
	if cols.Transform != "" && sch.Has(cols.Transform) {
		names = append(names, cols.Transform)
	}
	f, err := a.src.FetchColumns(ctx, a.cfg.RangeTable, names, frame.Range{Start: 0, End: sch.RowCount})
	if err != nil {
		return nil, &FetchError{Table: a.cfg.RangeTable, Range: frame.Range{Start: 0, End: sch.RowCount}, cause: err}
	}
	table, err := axis.LoadTable(f, cols, a.colIdx, a.rowIdx)
	if err != nil {
		return nil, fmt.Errorf("plotstream: range table %q: %w", a.cfg.RangeTable, err)
	}
	return table, nil
}

// Store returns the adapter's chunk store. When the store was not injected,
// the caller owns clearing it after the last chunk.
func (a *Adapter) Store() *chunkstore.Store { return a.store }

// RowCount returns the data table's total row count.
func (a *Adapter) RowCount() int64 { return a.rowCount }

// FacetCount implements Provider.
func (a *Adapter) FacetCount(ax facet.Axis) int {
	return a.facetIndex(ax).Count()
}

// FacetLabels implements Provider. The returned frame carries a ".label"
// column plus one String column per discriminator name, in grid order; a
// group missing a discriminator leaves that row invalid.
func (a *Adapter) FacetLabels(ax facet.Axis) *frame.Frame {
	idx := a.facetIndex(ax)
	groups := idx.Groups()

	keySet := make(map[string]struct{})
	for _, g := range groups {
		for k := range g.Discriminators {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := frame.New(len(groups))
	_ = f.Add(frame.NewString(".label", idx.Labels()))
	for _, k := range keys {
		c := frame.NewString(k, make([]string, len(groups)))
		for i, g := range groups {
			v, ok := g.Discriminators[k]
			if !ok {
				c.SetInvalid(i)
				continue
			}
			c.Str[i] = v
		}
		_ = f.Add(c)
	}
	return f
}

// AxisMetadata implements Provider. Heatmap plots report a categorical range
// over the row facet labels; others consult the range resolver, which may
// run the fallback scan on first use of a cell.
func (a *Adapter) AxisMetadata(col, row int) (axis.Range, error) {
	if col < 0 || col >= a.colIdx.Count() || row < 0 || row >= a.rowIdx.Count() {
		return axis.Range{}, fmt.Errorf("plotstream: cell %s outside the %dx%d facet grid",
			axis.Cell{Col: col, Row: row}, a.colIdx.Count(), a.rowIdx.Count())
	}
	if a.cfg.Heatmap {
		return axis.Categorical(a.rowIdx.Labels()), nil
	}
	return a.resolver.Resolve(context.Background(), axis.Cell{Col: col, Row: row})
}

// ColorScaleMetadata implements Provider.
func (a *Adapter) ColorScaleMetadata() colorscale.Metadata {
	return a.colors.Metadata()
}

// PreloadRanges resolves every facet cell's range before streaming starts,
// bounding concurrent fallback scans. Optional; cells not preloaded resolve
// lazily on first use.
func (a *Adapter) PreloadRanges(ctx context.Context) error {
	if a.cfg.Heatmap {
		return nil
	}
	cells := make([]axis.Cell, 0, a.colIdx.Count()*a.rowIdx.Count())
	for col := 0; col < a.colIdx.Count(); col++ {
		for row := 0; row < a.rowIdx.Count(); row++ {
			cells = append(cells, axis.Cell{Col: col, Row: row})
		}
	}
	return a.resolver.Preload(ctx, cells)
}

func (a *Adapter) facetIndex(ax facet.Axis) *facet.Index {
	if ax == facet.Columns {
		return a.colIdx
	}
	return a.rowIdx
}

var _ Provider = (*Adapter)(nil)
