package facet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// crossGroups lays out sex x batch row groups the way a crosstab does:
// original indices follow layout order.
func crossGroups(sexes []string, batches int) []Group {
	var groups []Group
	for _, sex := range sexes {
		for b := 0; b < batches; b++ {
			groups = append(groups, Group{
				Original: len(groups),
				Label:    fmt.Sprintf("%s/batch-%d", sex, b),
				Discriminators: map[string]string{
					"sex":   sex,
					"batch": fmt.Sprintf("batch-%d", b),
				},
			})
		}
	}
	return groups
}

func TestBuild_NoFilter(t *testing.T) {
	idx, err := Build(crossGroups([]string{"female", "male"}, 12), nil)
	require.NoError(t, err)

	assert.Equal(t, 24, idx.Count())
	for grid := 0; grid < idx.Count(); grid++ {
		orig, err := idx.GridToOriginal(grid)
		require.NoError(t, err)
		assert.Equal(t, grid, orig, "unpaginated grid and original indices coincide")
	}
	assert.Equal(t, uint64(24), idx.Members().GetCardinality())
}

func TestBuild_PageFilter(t *testing.T) {
	// 24 row groups crossing sex (female first) with 12 batches; the male
	// page keeps originals 12..23 and renumbers them to grids 0..11.
	idx, err := Build(crossGroups([]string{"female", "male"}, 12), map[string]string{"sex": "male"})
	require.NoError(t, err)

	require.Equal(t, 12, idx.Count())
	for grid := 0; grid < 12; grid++ {
		orig, err := idx.GridToOriginal(grid)
		require.NoError(t, err)
		assert.Equal(t, grid+12, orig)

		back, ok := idx.OriginalToGrid(orig)
		require.True(t, ok)
		assert.Equal(t, grid, back)
	}

	for orig := 0; orig < 12; orig++ {
		_, ok := idx.OriginalToGrid(orig)
		assert.False(t, ok, "female group %d is off the page", orig)
		assert.False(t, idx.Members().Contains(uint32(orig)))
	}
	for orig := 12; orig < 24; orig++ {
		assert.True(t, idx.Members().Contains(uint32(orig)))
	}
}

func TestBuild_MultiKeyFilter(t *testing.T) {
	idx, err := Build(crossGroups([]string{"female", "male"}, 3), map[string]string{
		"sex":   "male",
		"batch": "batch-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, idx.Count())

	g, err := idx.Group(0)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Original)
	assert.Equal(t, "male/batch-1", g.Label)
}

func TestBuild_NoMatch(t *testing.T) {
	_, err := Build(crossGroups([]string{"female", "male"}, 2), map[string]string{"sex": "other"})
	var noMatch *NoGroupsMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Contains(t, err.Error(), "sex=other")
}

func TestBuild_FilterOnMissingKey(t *testing.T) {
	groups := []Group{
		{Original: 0, Label: "a"},
		{Original: 1, Label: "b", Discriminators: map[string]string{"run": "r1"}},
	}
	idx, err := Build(groups, map[string]string{"run": "r1"})
	require.NoError(t, err)
	require.Equal(t, 1, idx.Count())
	g, _ := idx.Group(0)
	assert.Equal(t, 1, g.Original)
}

func TestBuild_Invalid(t *testing.T) {
	_, err := Build(nil, nil)
	assert.Error(t, err)

	_, err = Build([]Group{{Original: -1}}, nil)
	assert.Error(t, err)

	_, err = Build([]Group{{Original: 3}, {Original: 3}}, nil)
	assert.Error(t, err)
}

func TestIndex_Bounds(t *testing.T) {
	idx, err := Build([]Group{{Original: 0, Label: "only"}}, nil)
	require.NoError(t, err)

	_, err = idx.Group(1)
	assert.Error(t, err)
	_, err = idx.GridToOriginal(-1)
	assert.Error(t, err)
	assert.Equal(t, []string{"only"}, idx.Labels())
}

func TestFromFrame(t *testing.T) {
	f := frame.New(3)
	require.NoError(t, f.Add(frame.NewString(".label", []string{"g0", "g1", "g2"})))
	require.NoError(t, f.Add(frame.NewString("sex", []string{"female", "female", "male"})))
	batch := frame.NewInt32("batch", []int32{0, 1, 0})
	batch.SetInvalid(2)
	require.NoError(t, f.Add(batch))

	groups, err := FromFrame(f, ".label", []string{"sex", "batch"})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, 1, groups[1].Original)
	assert.Equal(t, "g1", groups[1].Label)
	assert.Equal(t, map[string]string{"sex": "female", "batch": "1"}, groups[1].Discriminators)

	_, hasBatch := groups[2].Discriminators["batch"]
	assert.False(t, hasBatch, "missing factor value omits the key")
	assert.Equal(t, "male", groups[2].Discriminators["sex"])
}

func TestFromFrame_Errors(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.Add(frame.NewString(".label", []string{"g"})))
	require.NoError(t, f.Add(frame.NewUint32("color", []uint32{1})))

	_, err := FromFrame(f, "missing", nil)
	assert.Error(t, err)

	_, err = FromFrame(f, ".label", []string{"absent"})
	assert.Error(t, err)

	_, err = FromFrame(f, ".label", []string{"color"})
	assert.Error(t, err, "Uint32 is not a factor type")
}
