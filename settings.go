package plotstream

import (
	"context"
	"fmt"

	"github.com/tercen/ggrs-plot-operator-sub000/codec"
	"github.com/tercen/ggrs-plot-operator-sub000/colorscale"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/tablesource"
)

// Settings is the operator-facing plot document, decoded from JSON. Load
// turns it into a validated Config plus the page plans it implies.
type Settings struct {
	Table           string          `json:"table"`
	Session         string          `json:"session"`
	CacheRoot       string          `json:"cache_root,omitempty"`
	Compression     string          `json:"compression,omitempty"`
	FetchRowsPerSec float64         `json:"fetch_rows_per_sec,omitempty"`
	Heatmap         bool            `json:"heatmap,omitempty"`
	Mapping         MappingSettings `json:"mapping"`
	RangeTable      string          `json:"range_table,omitempty"`
	RowFacets       FacetSettings   `json:"row_facets"`
	ColFacets       FacetSettings   `json:"col_facets"`
	PageBy          string          `json:"page_by,omitempty"`
	Colors          ColorSettings   `json:"colors,omitempty"`
}

// MappingSettings names the data table's pipeline columns.
type MappingSettings struct {
	RowFacet string   `json:"row_facet,omitempty"`
	ColFacet string   `json:"col_facet,omitempty"`
	X        string   `json:"x,omitempty"`
	Y        string   `json:"y,omitempty"`
	Value    string   `json:"value,omitempty"`
	Extra    []string `json:"extra,omitempty"`
}

// FacetSettings names one axis's metadata table.
type FacetSettings struct {
	Table   string   `json:"table"`
	Label   string   `json:"label"`
	Factors []string `json:"factors,omitempty"`
}

// ColorSettings describes the plot's color sources in settings form.
type ColorSettings struct {
	Layer    string                       `json:"layer,omitempty"`
	Shared   *AssignmentSettings          `json:"shared,omitempty"`
	PerLayer map[int32]AssignmentSettings `json:"per_layer,omitempty"`
	Palette  []string                     `json:"palette,omitempty"`
	Output   string                       `json:"output,omitempty"`
}

// AssignmentSettings describes one color source.
type AssignmentSettings struct {
	Kind    string           `json:"kind"`
	Column  string           `json:"column"`
	Stops   []StopSettings   `json:"stops,omitempty"`
	Levels  map[int32]string `json:"levels,omitempty"`
	Default string           `json:"default,omitempty"`
}

// StopSettings anchors one continuous palette stop.
type StopSettings struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// ParseSettings decodes a settings document with the default codec.
func ParseSettings(data []byte) (Settings, error) {
	return DecodeSettings(codec.Default, data)
}

// DecodeSettings decodes a settings document with the given codec.
func DecodeSettings(c codec.Codec, data []byte) (Settings, error) {
	if c == nil {
		c = codec.Default
	}
	var s Settings
	if err := c.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("plotstream: decode settings: %w", err)
	}
	if s.Table == "" {
		return Settings{}, ErrNoTable
	}
	if s.Session == "" {
		return Settings{}, ErrNoSession
	}
	if _, err := frame.ParseCompression(s.Compression); err != nil {
		return Settings{}, fmt.Errorf("plotstream: settings: %w", err)
	}
	return s, nil
}

// Load fetches both facet metadata tables and resolves the document into a
// Config and its page plans. With no page_by discriminator the plan list is
// empty and RunPages renders one unfiltered page.
func (s Settings) Load(ctx context.Context, src tablesource.Source) (Config, []PagePlan, error) {
	rowGroups, err := loadFacetTable(ctx, src, s.RowFacets)
	if err != nil {
		return Config{}, nil, fmt.Errorf("plotstream: row facets: %w", err)
	}
	colGroups, err := loadFacetTable(ctx, src, s.ColFacets)
	if err != nil {
		return Config{}, nil, fmt.Errorf("plotstream: column facets: %w", err)
	}

	colors, err := s.Colors.build()
	if err != nil {
		return Config{}, nil, err
	}

	cfg := Config{
		Table:     s.Table,
		Session:   s.Session,
		CacheRoot: s.CacheRoot,
		Columns: ColumnMapping{
			RowFacet: s.Mapping.RowFacet,
			ColFacet: s.Mapping.ColFacet,
			X:        s.Mapping.X,
			Y:        s.Mapping.Y,
			Value:    s.Mapping.Value,
			Extra:    s.Mapping.Extra,
		},
		RowGroups:  rowGroups,
		ColGroups:  colGroups,
		RangeTable: s.RangeTable,
		Heatmap:    s.Heatmap,
		Colors:     colors,
	}

	var pages []PagePlan
	if s.PageBy != "" {
		pages = PagesByDiscriminator(rowGroups, s.PageBy)
		if len(pages) == 0 {
			return Config{}, nil, fmt.Errorf("plotstream: no row facet group carries the page_by discriminator %q", s.PageBy)
		}
	}
	return cfg, pages, nil
}

// Options returns the adapter options the document implies: cache entry
// compression and the fetch rate cap. An absent compression field keeps the
// default codec.
func (s Settings) Options() []Option {
	var opts []Option
	if s.Compression != "" {
		compression, _ := frame.ParseCompression(s.Compression)
		opts = append(opts, WithCompression(compression))
	}
	if s.FetchRowsPerSec > 0 {
		opts = append(opts, WithFetchRate(s.FetchRowsPerSec, 0))
	}
	return opts
}

func loadFacetTable(ctx context.Context, src tablesource.Source, fs FacetSettings) ([]facet.Group, error) {
	if fs.Table == "" {
		return nil, fmt.Errorf("facet metadata table id must not be empty")
	}
	if fs.Label == "" {
		return nil, fmt.Errorf("facet metadata table %q needs a label column", fs.Table)
	}

	sch, err := src.Schema(ctx, fs.Table)
	if err != nil {
		return nil, err
	}
	if sch.RowCount == 0 {
		return nil, fmt.Errorf("facet metadata table %q is empty", fs.Table)
	}

	names := append([]string{fs.Label}, fs.Factors...)
	f, err := src.FetchColumns(ctx, fs.Table, names, frame.Range{Start: 0, End: sch.RowCount})
	if err != nil {
		return nil, err
	}
	return facet.FromFrame(f, fs.Label, fs.Factors)
}

func (cs ColorSettings) build() (colorscale.Config, error) {
	cfg := colorscale.Config{
		LayerColumn: cs.Layer,
		Output:      cs.Output,
	}

	if cs.Shared != nil {
		a, err := cs.Shared.build()
		if err != nil {
			return colorscale.Config{}, fmt.Errorf("plotstream: shared color: %w", err)
		}
		cfg.Shared = &a
	}
	if len(cs.PerLayer) > 0 {
		cfg.PerLayer = make(map[int32]colorscale.Assignment, len(cs.PerLayer))
		for layer, as := range cs.PerLayer {
			a, err := as.build()
			if err != nil {
				return colorscale.Config{}, fmt.Errorf("plotstream: layer %d color: %w", layer, err)
			}
			cfg.PerLayer[layer] = a
		}
	}
	for _, h := range cs.Palette {
		c, err := colorscale.ParseHex(h)
		if err != nil {
			return colorscale.Config{}, fmt.Errorf("plotstream: palette: %w", err)
		}
		cfg.Palette = append(cfg.Palette, c)
	}
	return cfg, nil
}

func (as AssignmentSettings) build() (colorscale.Assignment, error) {
	switch as.Kind {
	case "continuous":
		stops := make([]colorscale.Stop, len(as.Stops))
		for i, ss := range as.Stops {
			c, err := colorscale.ParseHex(ss.Color)
			if err != nil {
				return colorscale.Assignment{}, err
			}
			stops[i] = colorscale.Stop{Value: ss.Value, Color: c}
		}
		scale, err := colorscale.NewContinuous(stops)
		if err != nil {
			return colorscale.Assignment{}, err
		}
		return colorscale.Assignment{Kind: colorscale.KindContinuous, Continuous: scale, Column: as.Column}, nil

	case "categorical":
		byLevel := make(map[int32]colorscale.RGB, len(as.Levels))
		for level, h := range as.Levels {
			c, err := colorscale.ParseHex(h)
			if err != nil {
				return colorscale.Assignment{}, err
			}
			byLevel[level] = c
		}
		def := colorscale.Pack(127, 127, 127)
		if as.Default != "" {
			var err error
			def, err = colorscale.ParseHex(as.Default)
			if err != nil {
				return colorscale.Assignment{}, err
			}
		}
		return colorscale.Assignment{
			Kind:        colorscale.KindCategorical,
			Categorical: colorscale.NewCategorical(byLevel, def),
			Column:      as.Column,
		}, nil

	case "precomputed":
		return colorscale.Assignment{Kind: colorscale.KindPrecomputed, Column: as.Column}, nil

	default:
		return colorscale.Assignment{}, fmt.Errorf("unknown color kind %q (want continuous, categorical or precomputed)", as.Kind)
	}
}
