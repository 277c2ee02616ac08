package mptt

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Target names the node a mutation positions against: either by identity or
// by an already loaded node. Either way it is re-read under the tree lock, and
// a loaded node is refreshed in place once the mutation is done.
type Target struct {
	id   uint64
	node *Nested
}

func ByID(id uint64) Target {
	return Target{id: id}
}

func ByNode(n Model) Target {
	nn := n.TreeNode()
	return Target{id: nn.ID, node: nn}
}

func (t *Tree[T, P]) resolveTarget(db *gorm.DB, target Target) (P, error) {
	if target.id == 0 {
		return nil, ErrTargetNotFound
	}
	n, err := t.load(db, target.id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTargetNotFound, target.id)
	}
	if target.node != nil {
		target.node.setPosition(n.TreeNode().position())
	}
	return n, nil
}

func (t *Tree[T, P]) refreshTarget(db *gorm.DB, target Target) error {
	if target.node == nil {
		return nil
	}
	_, err := t.reload(db, target.node)
	return err
}

// persist writes a brand new node. The marker lets it past Plugin.
func (t *Tree[T, P]) persist(db *gorm.DB, node P) error {
	return db.Set(engineMarker, true).Create(node).Error
}

type anchor int

const (
	anchorLeft anchor = iota
	anchorRight
)

func (a anchor) of(n *Nested) int {
	if a == anchorLeft {
		return n.Left
	}
	return n.Right
}

// InsertAsNewRoot adds node as the root of a new scope, numbered one past the
// highest scope in the table.
func (t *Tree[T, P]) InsertAsNewRoot(ctx context.Context, node P) error {
	return t.insertRoot(ctx, node, nil)
}

// InsertAsNewRootInScope adds node as the root of scope. It fails with
// ErrScopeExists if scope already has a root.
func (t *Tree[T, P]) InsertAsNewRootInScope(ctx context.Context, node P, scope int) error {
	return t.insertRoot(ctx, node, &scope)
}

func (t *Tree[T, P]) insertRoot(ctx context.Context, node P, scope *int) error {
	nn := node.TreeNode()
	if nn.Persisted() {
		return ErrAlreadyInTree
	}

	written := false
	err := t.mutate(ctx, "insert_root", func(tx *gorm.DB) error {
		s := 0
		if scope != nil {
			s = *scope
		} else {
			next, err := t.nextScope(tx)
			if err != nil {
				return err
			}
			s = next
		}

		existing, err := t.root(tx, s)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: scope %d", ErrScopeExists, s)
		}

		nn.setPosition(Nested{Left: 1, Right: 2, Level: 0, Scope: s})
		if err := t.persist(tx, node); err != nil {
			if nn.Persisted() {
				// the row went in before the error surfaced
				if derr := t.deleteRow(tx, nn.ID); derr != nil {
					return errors.Join(err, derr)
				}
			}
			return err
		}
		written = true

		t.log.Debug("inserted root", "id", nn.ID, "scope", s)
		return nil
	})
	t.forget(nn, err, written)
	return err
}

// forget resets a node whose insert did not stick. A row written outside a
// transaction stays, so the node keeps its identity then.
func (t *Tree[T, P]) forget(nn *Nested, err error, written bool) {
	if err == nil || (written && !t.opts.Transactional) {
		return
	}
	nn.ID = 0
	nn.setPosition(Nested{})
}

func (t *Tree[T, P]) deleteRow(db *gorm.DB, id uint64) error {
	if err := t.model(db.Unscoped()).Where(clause.Eq{Column: t.col.id, Value: id}).Delete(new(T)).Error; err != nil {
		return fmt.Errorf("removing partially inserted node %d: %w", id, err)
	}
	return nil
}

func (t *Tree[T, P]) nextScope(db *gorm.DB) (int, error) {
	var highest int
	if err := t.model(db.Unscoped()).Select("COALESCE(MAX(?), 0)", t.column(t.col.scope)).Scan(&highest).Error; err != nil {
		return 0, fmt.Errorf("selecting highest scope: %w", err)
	}
	return highest + 1, nil
}

// InsertAsFirstChild adds node before the existing children of target.
func (t *Tree[T, P]) InsertAsFirstChild(ctx context.Context, node P, target Target) error {
	return t.insert(ctx, "insert_first_child", node, target, anchorLeft, 1, 1)
}

// InsertAsLastChild adds node after the existing children of target.
func (t *Tree[T, P]) InsertAsLastChild(ctx context.Context, node P, target Target) error {
	return t.insert(ctx, "insert_last_child", node, target, anchorRight, 0, 1)
}

// InsertAsPrevSibling adds node directly before target under the same parent.
func (t *Tree[T, P]) InsertAsPrevSibling(ctx context.Context, node P, target Target) error {
	return t.insert(ctx, "insert_prev_sibling", node, target, anchorLeft, 0, 0)
}

// InsertAsNextSibling adds node directly after target under the same parent.
func (t *Tree[T, P]) InsertAsNextSibling(ctx context.Context, node P, target Target) error {
	return t.insert(ctx, "insert_next_sibling", node, target, anchorRight, 1, 0)
}

func (t *Tree[T, P]) insert(ctx context.Context, op string, node P, target Target, from anchor, leftOffset, levelOffset int) error {
	nn := node.TreeNode()
	if nn.Persisted() {
		return ErrAlreadyInTree
	}

	written := false
	err := t.mutate(ctx, op, func(tx *gorm.DB) error {
		tgt, err := t.resolveTarget(tx, target)
		if err != nil {
			return err
		}
		tn := tgt.TreeNode()

		if levelOffset == 0 && tn.IsRoot() {
			return ErrRootSibling
		}

		left := from.of(tn) + leftOffset
		pos := Nested{Left: left, Right: left + 1, Level: tn.Level + levelOffset, Scope: tn.Scope}

		if err := t.openGap(tx, pos.Scope, pos.Left, 2); err != nil {
			return err
		}

		nn.setPosition(pos)
		if err := t.persist(tx, node); err != nil {
			// never leave a gap without an occupant
			compensations.WithLabelValues(t.table).Inc()
			t.log.Warn("insert failed, closing gap", "op", op, "scope", pos.Scope, "left", pos.Left, "err", err)
			if nn.Persisted() {
				if derr := t.deleteRow(tx, nn.ID); derr != nil {
					return errors.Join(err, derr)
				}
			}
			if cerr := t.closeGap(tx, pos.Scope, pos.Left, 2); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		written = true

		t.log.Debug("inserted node", "op", op, "id", nn.ID, "target", tn.ID, "scope", pos.Scope, "left", pos.Left, "level", pos.Level)
		return t.refreshTarget(tx, target)
	})
	t.forget(nn, err, written)
	return err
}

// MoveToFirstChild makes node, with its subtree, the first child of target.
func (t *Tree[T, P]) MoveToFirstChild(ctx context.Context, node P, target Target) error {
	return t.move(ctx, "move_first_child", node, target, anchorLeft, 1, 1, true)
}

// MoveToLastChild makes node, with its subtree, the last child of target.
func (t *Tree[T, P]) MoveToLastChild(ctx context.Context, node P, target Target) error {
	return t.move(ctx, "move_last_child", node, target, anchorRight, 0, 1, true)
}

// MoveToPrevSibling places node, with its subtree, directly before target.
func (t *Tree[T, P]) MoveToPrevSibling(ctx context.Context, node P, target Target) error {
	return t.move(ctx, "move_prev_sibling", node, target, anchorLeft, 0, 0, false)
}

// MoveToNextSibling places node, with its subtree, directly after target.
func (t *Tree[T, P]) MoveToNextSibling(ctx context.Context, node P, target Target) error {
	return t.move(ctx, "move_next_sibling", node, target, anchorRight, 1, 0, false)
}

func (t *Tree[T, P]) move(ctx context.Context, op string, node P, target Target, from anchor, leftOffset, levelOffset int, allowRootTarget bool) error {
	nn := node.TreeNode()
	if !nn.Persisted() {
		return ErrNotInTree
	}

	return t.mutate(ctx, op, func(tx *gorm.DB) error {
		found, err := t.reload(tx, node)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: id %d", ErrNotInTree, nn.ID)
		}

		tgt, err := t.resolveTarget(tx, target)
		if err != nil {
			return err
		}
		tn := tgt.TreeNode()

		if tn.ID == nn.ID || tn.IsDescendantOf(nn) || (!allowRootTarget && tn.IsRoot()) {
			return ErrInvalidMove
		}

		boundary := from.of(tn) + leftOffset
		levelDelta := tn.Level - nn.Level + levelOffset
		size := nn.Size()
		fromScope := nn.Scope

		if err := t.openGap(tx, tn.Scope, boundary, size); err != nil {
			return err
		}

		// the gap may have pushed the subtree itself along
		if _, err := t.reload(tx, node); err != nil {
			return err
		}
		vacated := nn.Left
		offset := boundary - nn.Left

		res := t.inScope(tx.Unscoped().Set(engineMarker, true), fromScope).
			Where(clause.Gte{Column: t.col.left, Value: nn.Left}).
			Where(clause.Lte{Column: t.col.right, Value: nn.Right}).
			UpdateColumns(map[string]any{
				t.col.left:  gorm.Expr("? + ?", t.column(t.col.left), offset),
				t.col.right: gorm.Expr("? + ?", t.column(t.col.right), offset),
				t.col.level: gorm.Expr("? + ?", t.column(t.col.level), levelDelta),
				t.col.scope: tn.Scope,
			})
		if res.Error != nil {
			err := fmt.Errorf("relocating subtree of node %d: %w", nn.ID, res.Error)
			compensations.WithLabelValues(t.table).Inc()
			t.log.Warn("move failed, closing gap", "op", op, "scope", tn.Scope, "left", boundary, "err", err)
			if cerr := t.closeGap(tx, tn.Scope, boundary, size); cerr != nil {
				return errors.Join(err, cerr)
			}
			if _, rerr := t.reload(tx, node); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}

		if err := t.closeGap(tx, fromScope, vacated, size); err != nil {
			return err
		}

		if _, err := t.reload(tx, node); err != nil {
			return err
		}
		t.log.Debug("moved node", "op", op, "id", nn.ID, "target", tn.ID, "rows", res.RowsAffected, "scope", nn.Scope, "left", nn.Left, "level", nn.Level)
		return t.refreshTarget(tx, target)
	})
}

// Delete removes node together with its whole subtree and closes the space it
// occupied. Children are never re-parented.
func (t *Tree[T, P]) Delete(ctx context.Context, node P) error {
	nn := node.TreeNode()
	if !nn.Persisted() {
		return ErrNotInTree
	}

	return t.mutate(ctx, "delete", func(tx *gorm.DB) error {
		found, err := t.reload(tx, node)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: id %d", ErrNotInTree, nn.ID)
		}

		res := t.inScope(tx.Unscoped(), nn.Scope).
			Where(clause.Gte{Column: t.col.left, Value: nn.Left}).
			Where(clause.Lte{Column: t.col.right, Value: nn.Right}).
			Delete(new(T))
		if res.Error != nil {
			return fmt.Errorf("deleting subtree of node %d: %w", nn.ID, res.Error)
		}

		if err := t.closeGap(tx, nn.Scope, nn.Left, nn.Size()); err != nil {
			return err
		}

		t.log.Debug("deleted subtree", "id", nn.ID, "rows", res.RowsAffected, "scope", nn.Scope, "left", nn.Left)
		return nil
	})
}

// DeleteWhere exists to refuse deletes scoped by an arbitrary query: removing
// rows that do not form whole subtrees would tear the intervals apart.
func (t *Tree[T, P]) DeleteWhere(ctx context.Context, node P, query *gorm.DB) error {
	if query != nil {
		return fmt.Errorf("%w: delete with a caller supplied query", ErrUnsupported)
	}
	return t.Delete(ctx, node)
}

// CopyScope duplicates the whole tree rooted at root into a new scope and
// returns the copy of root. Payload columns are copied as they are; identities
// are assigned fresh.
func (t *Tree[T, P]) CopyScope(ctx context.Context, root P) (P, error) {
	rn := root.TreeNode()
	if !rn.Persisted() {
		return nil, ErrNotInTree
	}

	var copied P
	err := t.mutate(ctx, "copy_scope", func(tx *gorm.DB) error {
		found, err := t.reload(tx, root)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: id %d", ErrNotInTree, rn.ID)
		}
		if !rn.IsRoot() {
			return ErrNotRoot
		}

		scope, err := t.nextScope(tx)
		if err != nil {
			return err
		}

		var rows []T
		if err := t.inScope(tx, rn.Scope).Order(clause.OrderByColumn{Column: t.column(t.col.left)}).Find(&rows).Error; err != nil {
			return fmt.Errorf("loading scope %d: %w", rn.Scope, err)
		}
		for i := range rows {
			n := P(&rows[i]).TreeNode()
			n.ID = 0
			n.Scope = scope
		}

		if err := tx.Set(engineMarker, true).CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("copying scope %d to %d: %w", rn.Scope, scope, err)
		}

		copied = P(&rows[0])
		t.log.Debug("copied scope", "from", rn.Scope, "to", scope, "rows", len(rows))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}
