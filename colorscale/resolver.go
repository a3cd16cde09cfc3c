package colorscale

import (
	"fmt"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// Kind identifies how colors are produced.
type Kind uint8

const (
	// KindNone means no scale is configured.
	KindNone Kind = iota
	// KindContinuous interpolates between stops over a numeric column.
	KindContinuous
	// KindCategorical looks level codes up in a color map.
	KindCategorical
	// KindPrecomputed passes packed colors from the source through.
	KindPrecomputed
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindContinuous:
		return "continuous"
	case KindCategorical:
		return "categorical"
	case KindPrecomputed:
		return "precomputed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Assignment binds one color source to the driving column it reads.
type Assignment struct {
	Kind        Kind
	Continuous  *Continuous
	Categorical *Categorical

	// Column names the driving column: Float64 for continuous scales,
	// Int32 level codes for categorical, packed Uint32 for precomputed.
	Column string
}

func (a Assignment) validate() error {
	switch a.Kind {
	case KindContinuous:
		if a.Continuous == nil {
			return fmt.Errorf("colorscale: continuous assignment has no scale")
		}
	case KindCategorical:
		if a.Categorical == nil {
			return fmt.Errorf("colorscale: categorical assignment has no scale")
		}
	case KindPrecomputed:
	default:
		return fmt.Errorf("colorscale: assignment kind %s is not usable", a.Kind)
	}
	if a.Column == "" {
		return fmt.Errorf("colorscale: assignment has no driving column")
	}
	return nil
}

// Config describes a plot's color sources.
type Config struct {
	// LayerColumn names the Int32 column discriminating layers. Required
	// when PerLayer is non-empty.
	LayerColumn string

	// PerLayer assigns a color source to individual layers.
	PerLayer map[int32]Assignment

	// Shared is the plot-wide color source consulted when no per-layer
	// assignment claims a row.
	Shared *Assignment

	// Palette colors rows no assignment claims, cycled by layer index.
	// Nil selects DefaultPalette.
	Palette []RGB

	// Output names the produced color column. Empty selects ".color".
	Output string
}

// Metadata summarizes the plot-wide scale for legend rendering.
type Metadata struct {
	Kind    Kind
	Stops   []Stop
	Levels  []int32
	Default RGB
}

// Resolver colors chunk rows. For each row the first source able to yield a
// color wins: the row's per-layer assignment, then the shared assignment,
// then the palette. An assignment yields only when its driving value is
// present; missing values fall through to the next source.
type Resolver struct {
	layerCol string
	perLayer map[int32]Assignment
	shared   *Assignment
	palette  []RGB
	output   string
}

// NewResolver validates a color configuration.
func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.PerLayer) > 0 && cfg.LayerColumn == "" {
		return nil, fmt.Errorf("colorscale: per-layer assignments need a layer column")
	}
	for layer, a := range cfg.PerLayer {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("%w (layer %d)", err, layer)
		}
	}
	if cfg.Shared != nil {
		if err := cfg.Shared.validate(); err != nil {
			return nil, err
		}
	}

	palette := cfg.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	output := cfg.Output
	if output == "" {
		output = ".color"
	}
	return &Resolver{
		layerCol: cfg.LayerColumn,
		perLayer: cfg.PerLayer,
		shared:   cfg.Shared,
		palette:  palette,
		output:   output,
	}, nil
}

// Output returns the name of the produced color column.
func (r *Resolver) Output() string { return r.output }

// Metadata returns legend metadata for the shared scale. Plots colored only
// per layer or by palette report KindNone.
func (r *Resolver) Metadata() Metadata {
	if r.shared == nil {
		return Metadata{Kind: KindNone}
	}
	switch r.shared.Kind {
	case KindContinuous:
		return Metadata{Kind: KindContinuous, Stops: r.shared.Continuous.Stops()}
	case KindCategorical:
		return Metadata{
			Kind:    KindCategorical,
			Levels:  r.shared.Categorical.Levels(),
			Default: r.shared.Categorical.Default(),
		}
	default:
		return Metadata{Kind: r.shared.Kind}
	}
}

// binding pairs an assignment with its driving column in the current chunk.
type binding struct {
	a   Assignment
	col *frame.Column
}

func (r *Resolver) bind(f *frame.Frame, a Assignment) (binding, error) {
	var c *frame.Column
	var err error
	switch a.Kind {
	case KindContinuous:
		c, err = f.Float64(a.Column)
	case KindCategorical:
		c, err = f.Int32(a.Column)
	case KindPrecomputed:
		c, err = f.Uint32(a.Column)
	}
	if err != nil {
		return binding{}, fmt.Errorf("colorscale: driving column: %w", err)
	}
	return binding{a: a, col: c}, nil
}

func (b binding) colorAt(i int) (RGB, bool) {
	if !b.col.IsValid(i) {
		return 0, false
	}
	switch b.a.Kind {
	case KindContinuous:
		return b.a.Continuous.At(b.col.F64[i]), true
	case KindCategorical:
		return b.a.Categorical.At(b.col.I32[i]), true
	case KindPrecomputed:
		return RGB(b.col.U32[i]), true
	}
	return 0, false
}

// Resolve produces the chunk's color column. Every row receives a color; the
// column is fresh per call and never cached with the chunk.
func (r *Resolver) Resolve(f *frame.Frame) (frame.Column, error) {
	var layerC *frame.Column
	if r.layerCol != "" {
		var err error
		layerC, err = f.Int32(r.layerCol)
		if err != nil {
			return frame.Column{}, fmt.Errorf("colorscale: layer column: %w", err)
		}
	}

	perLayer := make(map[int32]binding, len(r.perLayer))
	for layer, a := range r.perLayer {
		b, err := r.bind(f, a)
		if err != nil {
			return frame.Column{}, fmt.Errorf("%w (layer %d)", err, layer)
		}
		perLayer[layer] = b
	}
	var shared *binding
	if r.shared != nil {
		b, err := r.bind(f, *r.shared)
		if err != nil {
			return frame.Column{}, err
		}
		shared = &b
	}

	out := make([]uint32, f.NumRows())
	for i := range out {
		layer := int32(0)
		layerKnown := true
		if layerC != nil {
			if layerC.IsValid(i) {
				layer = layerC.I32[i]
			} else {
				layerKnown = false
			}
		}

		if layerKnown {
			if b, ok := perLayer[layer]; ok {
				if c, ok := b.colorAt(i); ok {
					out[i] = uint32(c)
					continue
				}
			}
		}
		if shared != nil {
			if c, ok := shared.colorAt(i); ok {
				out[i] = uint32(c)
				continue
			}
		}
		out[i] = uint32(r.palette[paletteIndex(layer, len(r.palette))])
	}
	return frame.NewUint32(r.output, out), nil
}

func paletteIndex(layer int32, n int) int {
	i := int(layer) % n
	if i < 0 {
		i += n
	}
	return i
}
