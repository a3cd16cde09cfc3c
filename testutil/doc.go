// Package testutil provides testing utilities for plotstream.
//
// This package is intended for use in tests and benchmarks only. It provides
// an in-memory table source, fixture builders for facet metadata, range
// tables and quantized scatter data, and a static Provider double for
// renderer-side tests.
//
// # In-Memory Source
//
//	src := testutil.NewMemSource()
//	src.Add("plot-data", dataFrame)
//	n := src.Fetches("plot-data")  // at-most-once-fetch assertions
//
// # Fixtures
//
//	groups := testutil.FacetTable([]string{"a", "b"}, map[string][]string{"sex": {"f", "m"}})
//	data, _ := testutil.ScatterTable(rows, ranges)
package testutil
