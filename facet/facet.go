// Package facet maintains the mapping between a plot page's facet groups and
// the dense grid the renderer draws into.
//
// Every facet group carries two indices: the original index assigned when the
// full crosstab was laid out, and the grid index of its cell on the current
// page. On an unpaginated plot the two coincide. When a page filter keeps only
// a subset of the groups, grid indices are renumbered densely while original
// indices keep identifying rows in the data tables.
package facet

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// Axis selects one of the two facet directions.
type Axis uint8

const (
	// Rows is the vertical facet axis.
	Rows Axis = iota
	// Columns is the horizontal facet axis.
	Columns
)

// String returns the string representation of the Axis.
func (a Axis) String() string {
	switch a {
	case Rows:
		return "rows"
	case Columns:
		return "columns"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// Group is one facet group on an axis.
type Group struct {
	// Grid is the dense per-page index, assigned by Build.
	Grid int
	// Original is the index the group had in the full crosstab layout.
	Original int
	// Label is the human-readable group heading.
	Label string
	// Discriminators holds the factor values that define the group,
	// keyed by factor name.
	Discriminators map[string]string
}

// NoGroupsMatchError indicates that a page filter excluded every group.
type NoGroupsMatchError struct {
	Filter map[string]string
}

func (e *NoGroupsMatchError) Error() string {
	keys := make([]string, 0, len(e.Filter))
	for k := range e.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Filter[k]
	}
	return fmt.Sprintf("facet: no groups match page filter %v", parts)
}

// Index is the facet layout of one axis on one page.
type Index struct {
	groups     []Group
	byOriginal map[int]int
	members    *roaring.Bitmap
}

// Build constructs the page index for an axis. Groups whose discriminators
// match every filter entry are kept, in input order, and renumbered with dense
// grid indices starting at zero. A nil or empty filter keeps every group.
func Build(groups []Group, filter map[string]string) (*Index, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("facet: axis needs at least one group")
	}

	seen := make(map[int]struct{}, len(groups))
	for _, g := range groups {
		if g.Original < 0 {
			return nil, fmt.Errorf("facet: group %q has negative original index %d", g.Label, g.Original)
		}
		if _, dup := seen[g.Original]; dup {
			return nil, fmt.Errorf("facet: duplicate original index %d", g.Original)
		}
		seen[g.Original] = struct{}{}
	}

	idx := &Index{
		byOriginal: make(map[int]int),
		members:    roaring.New(),
	}
	for _, g := range groups {
		if !matches(g, filter) {
			continue
		}
		g.Grid = len(idx.groups)
		idx.byOriginal[g.Original] = g.Grid
		idx.members.Add(uint32(g.Original))
		idx.groups = append(idx.groups, g)
	}
	if len(idx.groups) == 0 {
		return nil, &NoGroupsMatchError{Filter: filter}
	}
	return idx, nil
}

func matches(g Group, filter map[string]string) bool {
	for k, v := range filter {
		if g.Discriminators[k] != v {
			return false
		}
	}
	return true
}

// Count returns the number of groups on the page.
func (idx *Index) Count() int { return len(idx.groups) }

// Groups returns the page's groups in grid order.
func (idx *Index) Groups() []Group { return idx.groups }

// Group returns the group at the given grid index.
func (idx *Index) Group(grid int) (Group, error) {
	if grid < 0 || grid >= len(idx.groups) {
		return Group{}, fmt.Errorf("facet: grid index %d out of range [0,%d)", grid, len(idx.groups))
	}
	return idx.groups[grid], nil
}

// Labels returns the group labels in grid order.
func (idx *Index) Labels() []string {
	labels := make([]string, len(idx.groups))
	for i, g := range idx.groups {
		labels[i] = g.Label
	}
	return labels
}

// GridToOriginal maps a grid index back to the group's original index.
func (idx *Index) GridToOriginal(grid int) (int, error) {
	g, err := idx.Group(grid)
	if err != nil {
		return 0, err
	}
	return g.Original, nil
}

// OriginalToGrid maps an original index to its grid index on this page.
// The second result is false when the group is not part of the page.
func (idx *Index) OriginalToGrid(original int) (int, bool) {
	grid, ok := idx.byOriginal[original]
	return grid, ok
}

// Members returns the bitmap of original indices present on this page. The
// bitmap is shared with the index and must not be modified.
func (idx *Index) Members() *roaring.Bitmap { return idx.members }

// FromFrame builds the group list of an axis from its facet metadata table.
// Row order defines original indices. labelCol names the string column holding
// group headings; discrCols name the factor columns, formatted as strings when
// numeric. Rows with a missing factor value omit that key.
func FromFrame(f *frame.Frame, labelCol string, discrCols []string) ([]Group, error) {
	labels, err := f.Strings(labelCol)
	if err != nil {
		return nil, err
	}

	type factor struct {
		name string
		col  *frame.Column
	}
	factors := make([]factor, 0, len(discrCols))
	for _, name := range discrCols {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		factors = append(factors, factor{name: name, col: c})
	}

	groups := make([]Group, f.NumRows())
	for i := range groups {
		g := Group{
			Grid:     i,
			Original: i,
			Label:    labelString(labels, i),
		}
		if len(factors) > 0 {
			g.Discriminators = make(map[string]string, len(factors))
			for _, fa := range factors {
				if !fa.col.IsValid(i) {
					continue
				}
				v, err := formatValue(fa.col, i)
				if err != nil {
					return nil, err
				}
				g.Discriminators[fa.name] = v
			}
		}
		groups[i] = g
	}
	return groups, nil
}

func labelString(c *frame.Column, i int) string {
	if !c.IsValid(i) {
		return ""
	}
	return c.Str[i]
}

func formatValue(c *frame.Column, i int) (string, error) {
	switch c.Type {
	case frame.TypeString:
		return c.Str[i], nil
	case frame.TypeInt32:
		return strconv.FormatInt(int64(c.I32[i]), 10), nil
	case frame.TypeFloat64:
		return strconv.FormatFloat(c.F64[i], 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("facet: factor column %q has unsupported type %s", c.Name, c.Type)
	}
}
