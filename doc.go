// Package plotstream streams faceted, quantized plot data from a tabular
// source to a rendering engine.
//
// The adapter answers a fixed query contract: facet counts and labels per
// axis, the value range of every facet cell, color-scale metadata for
// legends, and column-oriented data chunks for arbitrary row ranges. Chunks
// are prepared in a fixed pipeline: fetch, facet-membership masking, index
// remapping from original to page-local grid indices, coordinate
// dequantization, and color resolution. Prepared chunks are cached on disk
// per page, so a row range is fetched and prepared at most once however
// often the renderer asks for it.
//
// # Quick Start
//
//	src, _ := tablesource.OpenSQLite("plot.db")
//	defer src.Close()
//
//	adapter, _ := plotstream.New(ctx, src, cfg)
//	defer adapter.Store().Clear()
//
//	chunk, _ := adapter.QueryChunk(ctx, frame.Range{Start: 0, End: 10000})
//
// Paginated plots hand the cache lifecycle to the page loop instead:
//
//	pages := plotstream.PagesByDiscriminator(cfg.RowGroups, "sex")
//	err := plotstream.RunPages(ctx, src, cfg, pages, render)
//
// # Index Spaces
//
// Facet groups carry two indices. The original index identifies the group in
// the source tables and never changes. The grid index is the dense 0-based
// cell address the renderer draws into, reassigned per page. The adapter
// remaps every facet column from original to grid indices before a chunk
// leaves the pipeline; rows whose groups are not on the current page are
// masked out, not errors.
//
// # Error Handling
//
// Configuration problems (unknown transforms, malformed color stops, page
// filters matching no groups, unmapped columns) fail at construction.
// Missing invariant data (absent facet columns, uncovered cells) and cache
// I/O failures fail the current request; nothing is retried or silently
// defaulted. Fetch failures are wrapped in FetchError with the table id and
// row range attached.
package plotstream
