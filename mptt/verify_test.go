package mptt_test

import (
	"errors"
	"testing"

	"github.com/roelfsche/jelly-mptt/internal/testutil"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestVerifySoundTree(t *testing.T) {
	ctx := t.Context()
	tree, _ := testutil.CategoryTree(t, nil)
	testutil.Build(t, tree, sample)
	testutil.Build(t, tree, testutil.Shape{Name: "S"})

	for range 3 {
		assert.NoError(t, tree.VerifyScope(ctx, 1))
		assert.NoError(t, tree.VerifyScope(ctx, 2))
		assert.NoError(t, tree.VerifyTree(ctx))
	}
}

func TestVerifyEmptyScope(t *testing.T) {
	tree, _ := testutil.CategoryTree(t, nil)

	var ie *mptt.IntegrityError
	require.ErrorAs(t, tree.VerifyScope(t.Context(), 1), &ie)
	assert.Equal(t, mptt.CheckRoot, ie.Check)

	// no scopes at all is vacuously sound
	assert.NoError(t, tree.VerifyTree(t.Context()))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(db *gorm.DB, ids map[string]uint64) error
		check   string
	}{
		{
			name: "second root",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET lft = 1 WHERE id = ?", ids["A"]).Error
			},
			check: mptt.CheckRoot,
		},
		{
			name: "root level",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET lvl = 1 WHERE id = ?", ids["R"]).Error
			},
			check: mptt.CheckRoot,
		},
		{
			name: "right past the root",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET rgt = 13 WHERE id = ?", ids["C"]).Error
			},
			check: mptt.CheckBounds,
		},
		{
			name: "left equals right",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET lft = 9 WHERE id = ?", ids["B"]).Error
			},
			check: mptt.CheckInverted,
		},
		{
			name: "even width",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET rgt = 12 WHERE id = ?", ids["C"]).Error
			},
			check: mptt.CheckParity,
		},
		{
			name: "left collides with another left",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET lft = 8 WHERE id = ?", ids["C"]).Error
			},
			check: mptt.CheckDuplicate,
		},
		{
			name: "missing row",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("DELETE FROM categories WHERE id = ?", ids["C"]).Error
			},
			check: mptt.CheckCount,
		},
		{
			name: "partial overlap",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				// A2(5,8) and B(6,9) straddle A(2,7) and each other while every
				// boundary stays unique and every width odd
				if err := db.Exec("UPDATE categories SET lft = 5, rgt = 8 WHERE id = ?", ids["A2"]).Error; err != nil {
					return err
				}
				return db.Exec("UPDATE categories SET lft = 6, rgt = 9 WHERE id = ?", ids["B"]).Error
			},
			check: mptt.CheckOverlap,
		},
		{
			name: "wrong level",
			corrupt: func(db *gorm.DB, ids map[string]uint64) error {
				return db.Exec("UPDATE categories SET lvl = 2 WHERE id = ?", ids["B"]).Error
			},
			check: mptt.CheckLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := t.Context()
			tree, db := testutil.CategoryTree(t, nil)
			nodes := testutil.Build(t, tree, sample)
			testutil.Build(t, tree, testutil.Shape{Name: "S"})

			ids := map[string]uint64{}
			for name, n := range nodes {
				ids[name] = n.ID
			}
			require.NoError(t, tc.corrupt(db, ids))

			err := tree.VerifyScope(ctx, 1)
			var ie *mptt.IntegrityError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tc.check, ie.Check, ie.Detail)
			assert.Equal(t, 1, ie.Scope)
			assert.Equal(t, "categories", ie.Table)

			assert.NoError(t, tree.VerifyScope(ctx, 2))

			err = tree.VerifyTree(ctx)
			require.Error(t, err)
			assert.True(t, errors.As(err, &ie))
		})
	}
}
