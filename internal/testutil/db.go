package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/roelfsche/jelly-mptt/util/cliutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestDB opens a fresh sqlite database in a per-test temp dir.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "tree.sqlite"), 1)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqldb, err := db.DB(); err == nil {
			_ = sqldb.Close()
		}
	})
	return db
}

// CategoryTree returns a migrated, empty category tree. Each test gets its own
// locker so parallel tests do not serialize on the shared table name.
func CategoryTree(t testing.TB, opts *mptt.Options) (*models.CategoryTree, *gorm.DB) {
	t.Helper()

	if opts == nil {
		opts = mptt.DefaultOptions()
	}
	if opts.Locker == nil {
		opts.Locker = mptt.NewProcessLocker()
	}

	db := TestDB(t)
	tree, err := models.NewCategoryTree(db, opts)
	require.NoError(t, err)
	require.NoError(t, tree.Migrate(t.Context()))
	return tree, db
}

// Shape is a hierarchy to build: a name and its children in order.
type Shape struct {
	Name     string
	Children []Shape
}

// Build inserts shape as a new scope and returns every node by name.
func Build(t testing.TB, tree *models.CategoryTree, shape Shape) map[string]*models.Category {
	t.Helper()

	ctx := t.Context()
	nodes := map[string]*models.Category{}

	root := &models.Category{Name: shape.Name}
	require.NoError(t, tree.InsertAsNewRoot(ctx, root))
	nodes[shape.Name] = root

	var add func(parent *models.Category, children []Shape)
	add = func(parent *models.Category, children []Shape) {
		for _, c := range children {
			n := &models.Category{Name: c.Name}
			require.NoError(t, tree.InsertAsLastChild(ctx, n, mptt.ByID(parent.ID)))
			nodes[c.Name] = n
			add(n, c.Children)
		}
	}
	add(root, shape.Children)

	// earlier inserts were shifted by later ones
	for _, n := range nodes {
		_, err := tree.Reload(ctx, n)
		require.NoError(t, err)
	}
	return nodes
}

// Snapshot returns the tree columns of every row keyed by name.
func Snapshot(t testing.TB, db *gorm.DB) map[string]mptt.Nested {
	t.Helper()

	var rows []models.Category
	require.NoError(t, db.Order("scope, lft").Find(&rows).Error)

	out := make(map[string]mptt.Nested, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Nested
	}
	return out
}
