package mptt_test

import (
	"testing"

	"github.com/roelfsche/jelly-mptt/internal/testutil"
	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraversal(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := t.Context()
	tree, _ := testutil.CategoryTree(t, nil)
	n := testutil.Build(t, tree, sample)

	root, err := tree.Root(ctx, 1)
	require.NoError(err)
	assert.Equal("R", root.Name)

	missing, err := tree.Root(ctx, 42)
	require.NoError(err)
	assert.Nil(missing)

	parents, err := tree.AllParents(ctx, n["A1"])
	require.NoError(err)
	assert.Equal([]string{"R", "A"}, names(parents))

	parents, err = tree.Parents(ctx, n["A1"], mptt.ParentsOptions{ExcludeRoot: true})
	require.NoError(err)
	assert.Equal([]string{"A"}, names(parents))

	parents, err = tree.Parents(ctx, n["A1"], mptt.ParentsOptions{Order: mptt.Descending})
	require.NoError(err)
	assert.Equal([]string{"A", "R"}, names(parents))

	parent, err := tree.Parent(ctx, n["A1"])
	require.NoError(err)
	assert.Equal("A", parent.Name)

	parent, err = tree.Parent(ctx, n["R"])
	require.NoError(err)
	assert.Nil(parent)

	desc, err := tree.AllDescendants(ctx, n["R"])
	require.NoError(err)
	assert.Equal([]string{"A", "A1", "A2", "B", "C"}, names(desc))

	desc, err = tree.Descendants(ctx, n["R"], mptt.DescendantsOptions{IncludeSelf: true, Order: mptt.Descending, Limit: 3})
	require.NoError(err)
	assert.Equal([]string{"C", "B", "A2"}, names(desc))

	desc, err = tree.Descendants(ctx, n["R"], mptt.DescendantsOptions{LeavesOnly: true})
	require.NoError(err)
	assert.Equal([]string{"A1", "A2", "B", "C"}, names(desc))

	desc, err = tree.Descendants(ctx, n["R"], mptt.DescendantsOptions{IncludeSelf: true, DirectOnly: true})
	require.NoError(err)
	assert.Equal([]string{"R", "A", "B", "C"}, names(desc))

	children, err := tree.AllChildren(ctx, n["R"])
	require.NoError(err)
	assert.Equal([]string{"A", "B", "C"}, names(children))

	children, err = tree.AllChildren(ctx, n["B"])
	require.NoError(err)
	assert.Empty(children)

	first, err := tree.FirstChild(ctx, n["R"])
	require.NoError(err)
	assert.Equal("A", first.Name)

	last, err := tree.LastChild(ctx, n["R"])
	require.NoError(err)
	assert.Equal("C", last.Name)

	none, err := tree.FirstChild(ctx, n["C"])
	require.NoError(err)
	assert.Nil(none)

	// only direct children without children of their own
	leaves, err := tree.AllLeaves(ctx, n["R"])
	require.NoError(err)
	assert.Equal([]string{"B", "C"}, names(leaves))

	siblings, err := tree.AllSiblings(ctx, n["B"])
	require.NoError(err)
	assert.Equal([]string{"A", "C"}, names(siblings))

	siblings, err = tree.Siblings(ctx, n["B"], mptt.SiblingsOptions{IncludeSelf: true, Order: mptt.Descending})
	require.NoError(err)
	assert.Equal([]string{"C", "B", "A"}, names(siblings))

	siblings, err = tree.AllSiblings(ctx, n["R"])
	require.NoError(err)
	assert.Empty(siblings)

	siblings, err = tree.Siblings(ctx, n["R"], mptt.SiblingsOptions{IncludeSelf: true})
	require.NoError(err)
	assert.Equal([]string{"R"}, names(siblings))

	r, err := tree.RootOf(ctx, n["A2"])
	require.NoError(err)
	assert.Equal(n["R"].ID, r.ID)
}

func TestNeighboursFollowPreorder(t *testing.T) {
	ctx := t.Context()
	tree, _ := testutil.CategoryTree(t, nil)
	n := testutil.Build(t, tree, sample)

	next, err := tree.NextSibling(ctx, n["A"])
	require.NoError(t, err)
	assert.Equal(t, "A1", next.Name)

	prev, err := tree.PrevSibling(ctx, n["B"])
	require.NoError(t, err)
	assert.Equal(t, "A2", prev.Name)

	next, err = tree.NextSibling(ctx, n["C"])
	require.NoError(t, err)
	assert.Nil(t, next)

	prev, err = tree.PrevSibling(ctx, n["R"])
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestRelationPredicates(t *testing.T) {
	ctx := t.Context()
	tree, _ := testutil.CategoryTree(t, nil)
	n := testutil.Build(t, tree, sample)

	childOf := func(a, b *models.Category) (bool, error) { return tree.IsChildOf(ctx, a, b) }
	parentOf := func(a, b *models.Category) (bool, error) { return tree.IsParentOf(ctx, a, b) }
	siblingOf := func(a, b *models.Category) (bool, error) { return tree.IsSiblingOf(ctx, a, b) }

	tests := []struct {
		name string
		fn   func(a, b *models.Category) (bool, error)
		a, b string
		want bool
	}{
		{"child of parent", childOf, "A1", "A", true},
		{"child of grandparent", childOf, "A1", "R", false},
		{"parent of child", parentOf, "R", "B", true},
		{"parent of self", parentOf, "B", "B", false},
		{"siblings", siblingOf, "A1", "A2", true},
		{"cousins", siblingOf, "A1", "B", false},
		{"self", siblingOf, "B", "B", false},
		{"root", siblingOf, "R", "A", false},
	}
	for _, tc := range tests {
		got, err := tc.fn(n[tc.a], n[tc.b])
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestSelectList(t *testing.T) {
	tree, _ := testutil.CategoryTree(t, nil)
	testutil.Build(t, tree, sample)

	items, err := tree.SelectList(t.Context(), 1, (*models.Category).Label, "-")
	require.NoError(t, err)

	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Equal(t, []string{"R", "-A", "--A1", "--A2", "-B", "-C"}, labels)
	assert.Equal(t, 2, items[2].Level)
}

func TestLoadAndReload(t *testing.T) {
	ctx := t.Context()
	tree, _ := testutil.CategoryTree(t, nil)
	n := testutil.Build(t, tree, sample)

	missing, err := tree.Load(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// a stale copy picks up shifts made through another handle
	stale, err := tree.Load(ctx, n["C"].ID)
	require.NoError(t, err)
	require.NoError(t, tree.InsertAsFirstChild(ctx, &models.Category{Name: "N"}, mptt.ByID(n["R"].ID)))

	found, err := tree.Reload(ctx, stale)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 12, stale.Left)

	require.NoError(t, tree.Delete(ctx, n["C"]))
	found, err = tree.Reload(ctx, stale)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = tree.Reload(ctx, &models.Category{Name: "unsaved"})
	require.NoError(t, err)
	assert.False(t, found)
}
