package plotstream

import (
	"context"
	"fmt"
	"os"

	"github.com/tercen/ggrs-plot-operator-sub000/chunkstore"
	"github.com/tercen/ggrs-plot-operator-sub000/facet"
	"github.com/tercen/ggrs-plot-operator-sub000/tablesource"
)

// PagePlan selects the facet groups of one page.
type PagePlan struct {
	// Name identifies the page in logs and output file names.
	Name string

	// Filter is the page's group predicate, discriminator name to required
	// value. An empty filter renders every group.
	Filter map[string]string
}

// PagesByDiscriminator derives page plans from the distinct values of one
// discriminator, in first-appearance order over the groups. Groups missing
// the discriminator contribute no page.
func PagesByDiscriminator(groups []facet.Group, name string) []PagePlan {
	var pages []PagePlan
	seen := make(map[string]struct{})
	for _, g := range groups {
		v, ok := g.Discriminators[name]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		pages = append(pages, PagePlan{
			Name:   name + "=" + v,
			Filter: map[string]string{name: v},
		})
	}
	return pages
}

// RenderFunc renders one page from a Provider.
type RenderFunc func(ctx context.Context, page PagePlan, p Provider) error

// RunPages renders pages strictly sequentially over one shared chunk store,
// so re-rendering a page within the run hits its cached chunks. The store is
// created before the first page and cleared after the last; an injected
// store stays with its owner and is not cleared. A nil or empty plan list
// renders a single unfiltered page.
func RunPages(ctx context.Context, src tablesource.Source, cfg Config, pages []PagePlan, render RenderFunc, opts ...Option) error {
	if render == nil {
		return fmt.Errorf("plotstream: render func must not be nil")
	}
	if len(pages) == 0 {
		pages = []PagePlan{{Name: "all"}}
	}

	o := applyOptions(opts...)
	logger := o.logger.WithSession(cfg.Session)

	store := o.store
	if store == nil {
		if cfg.Session == "" {
			return ErrNoSession
		}
		root := cfg.CacheRoot
		if root == "" {
			root = os.TempDir()
		}
		var err error
		store, err = chunkstore.Open(root, cfg.Session, chunkstore.WithCompression(o.compression))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Clear(); err != nil {
				logger.Warn("chunk store not cleared", "error", err)
			}
		}()
	}

	for i, page := range pages {
		logger.LogPage(ctx, page.Name, i+1, len(pages))

		pcfg := cfg
		pcfg.PageFilter = page.Filter
		adapter, err := New(ctx, src, pcfg, append(opts, WithStore(store))...)
		if err != nil {
			return fmt.Errorf("plotstream: page %q: %w", page.Name, err)
		}
		if err := render(ctx, page, adapter); err != nil {
			return fmt.Errorf("plotstream: page %q: %w", page.Name, err)
		}
	}

	if bc, ok := o.metrics.(*BasicMetricsCollector); ok {
		logger.LogPageSummary(ctx, bc.Snapshot())
	}
	return nil
}
