package mptt

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openGap shifts every boundary at or beyond boundary within scope up by size.
// Lefts and rights are updated separately: an ancestor straddling the boundary
// only has its right moved, which widens it around the new space.
func (t *Tree[T, P]) openGap(db *gorm.DB, scope, boundary, size int) error {
	if err := t.shift(db, scope, boundary, size); err != nil {
		return fmt.Errorf("opening gap of %d at %d in scope %d: %w", size, boundary, scope, err)
	}
	return nil
}

// closeGap is the inverse of openGap, collapsing the space a removed or moved
// subtree used to occupy.
func (t *Tree[T, P]) closeGap(db *gorm.DB, scope, boundary, size int) error {
	if err := t.shift(db, scope, boundary, -size); err != nil {
		return fmt.Errorf("closing gap of %d at %d in scope %d: %w", size, boundary, scope, err)
	}
	return nil
}

func (t *Tree[T, P]) shift(db *gorm.DB, scope, boundary, delta int) error {
	direction := "open"
	if delta < 0 {
		direction = "close"
	}

	for _, name := range []string{t.col.left, t.col.right} {
		res := t.inScope(db.Unscoped().Set(engineMarker, true), scope).
			Where(clause.Gte{Column: name, Value: boundary}).
			UpdateColumn(name, gorm.Expr("? + ?", t.column(name), delta))
		if res.Error != nil {
			return res.Error
		}
		rowsShifted.WithLabelValues(t.table, direction).Add(float64(res.RowsAffected))
	}
	return nil
}
