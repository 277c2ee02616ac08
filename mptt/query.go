package mptt

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The read methods below filter on the interval of the node passed in, as the
// caller holds it. After a mutation that may have shifted it, Reload the node
// first or pass one returned by a fresh query.

// Order is the direction results are sorted by left.
type Order int

const (
	Ascending Order = iota
	Descending
)

type ParentsOptions struct {
	ExcludeRoot bool
	Order       Order
	// DirectOnly restricts the result to the immediate parent.
	DirectOnly bool
}

type DescendantsOptions struct {
	IncludeSelf bool
	Order       Order
	// DirectOnly restricts the result to children, plus the node itself when
	// IncludeSelf is set.
	DirectOnly bool
	LeavesOnly bool
	// Limit caps the number of rows; zero means unlimited.
	Limit int
}

type ChildrenOptions struct {
	IncludeSelf bool
	Order       Order
	Limit       int
}

type LeavesOptions struct {
	IncludeSelf bool
	Order       Order
}

type SiblingsOptions struct {
	IncludeSelf bool
	Order       Order
}

func (t *Tree[T, P]) list(q *gorm.DB, order Order, limit int) ([]P, error) {
	q = q.Order(clause.OrderByColumn{Column: t.column(t.col.left), Desc: order == Descending})
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return t.pointers(rows), nil
}

func (t *Tree[T, P]) first(q *gorm.DB, order Order) (P, error) {
	rows, err := t.list(q, order, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *Tree[T, P]) root(db *gorm.DB, scope int) (P, error) {
	root, err := t.first(t.inScope(db, scope).Where(clause.Eq{Column: t.col.left, Value: 1}), Ascending)
	if err != nil {
		return nil, fmt.Errorf("loading root of scope %d: %w", scope, err)
	}
	return root, nil
}

// Root returns the root of scope, or nil if the scope does not exist.
func (t *Tree[T, P]) Root(ctx context.Context, scope int) (P, error) {
	return t.root(t.db.WithContext(ctx), scope)
}

func (t *Tree[T, P]) parents(db *gorm.DB, n *Nested, opts ParentsOptions) ([]P, error) {
	q := t.inScope(db, n.Scope).
		Where(clause.Lte{Column: t.col.left, Value: n.Left}).
		Where(clause.Gte{Column: t.col.right, Value: n.Right}).
		Where(clause.Neq{Column: t.col.id, Value: n.ID})

	if opts.ExcludeRoot {
		q = q.Where(clause.Neq{Column: t.col.left, Value: 1})
	}

	limit := 0
	if opts.DirectOnly {
		q = q.Where(clause.Eq{Column: t.col.level, Value: n.Level - 1})
		limit = 1
	}

	rows, err := t.list(q, opts.Order, limit)
	if err != nil {
		return nil, fmt.Errorf("loading parents of node %d: %w", n.ID, err)
	}
	return rows, nil
}

// Parents returns the ancestors of n, root first unless Descending.
func (t *Tree[T, P]) Parents(ctx context.Context, n P, opts ParentsOptions) ([]P, error) {
	return t.parents(t.db.WithContext(ctx), n.TreeNode(), opts)
}

func (t *Tree[T, P]) parent(db *gorm.DB, n *Nested) (P, error) {
	rows, err := t.parents(db, n, ParentsOptions{DirectOnly: true})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Parent returns the direct parent of n, or nil for a root.
func (t *Tree[T, P]) Parent(ctx context.Context, n P) (P, error) {
	return t.parent(t.db.WithContext(ctx), n.TreeNode())
}

func (t *Tree[T, P]) descendants(db *gorm.DB, n *Nested, opts DescendantsOptions) ([]P, error) {
	var q *gorm.DB
	if opts.IncludeSelf {
		q = t.inScope(db, n.Scope).
			Where(clause.Gte{Column: t.col.left, Value: n.Left}).
			Where(clause.Lte{Column: t.col.right, Value: n.Right})
	} else {
		q = t.inScope(db, n.Scope).
			Where(clause.Gt{Column: t.col.left, Value: n.Left}).
			Where(clause.Lt{Column: t.col.right, Value: n.Right})
	}

	if opts.DirectOnly {
		if opts.IncludeSelf {
			q = q.Where(clause.IN{Column: t.column(t.col.level), Values: []any{n.Level, n.Level + 1}})
		} else {
			q = q.Where(clause.Eq{Column: t.col.level, Value: n.Level + 1})
		}
	}

	if opts.LeavesOnly {
		q = q.Where(clause.Expr{SQL: "? = ? + 1", Vars: []any{t.column(t.col.right), t.column(t.col.left)}})
	}

	rows, err := t.list(q, opts.Order, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("loading descendants of node %d: %w", n.ID, err)
	}
	return rows, nil
}

// Descendants returns the nodes inside n's interval.
func (t *Tree[T, P]) Descendants(ctx context.Context, n P, opts DescendantsOptions) ([]P, error) {
	return t.descendants(t.db.WithContext(ctx), n.TreeNode(), opts)
}

// Children returns the direct children of n.
func (t *Tree[T, P]) Children(ctx context.Context, n P, opts ChildrenOptions) ([]P, error) {
	return t.Descendants(ctx, n, DescendantsOptions{
		IncludeSelf: opts.IncludeSelf,
		Order:       opts.Order,
		DirectOnly:  true,
		Limit:       opts.Limit,
	})
}

// Leaves returns the children of n that have no children of their own. Leaves
// deeper in the subtree are not included.
func (t *Tree[T, P]) Leaves(ctx context.Context, n P, opts LeavesOptions) ([]P, error) {
	return t.Descendants(ctx, n, DescendantsOptions{
		IncludeSelf: opts.IncludeSelf,
		Order:       opts.Order,
		DirectOnly:  true,
		LeavesOnly:  true,
	})
}

func (t *Tree[T, P]) siblings(db *gorm.DB, n *Nested, opts SiblingsOptions) ([]P, error) {
	parent, err := t.parent(db, n)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		// a root is alone in its scope
		if opts.IncludeSelf {
			return t.list(t.model(db).Where(clause.Eq{Column: t.col.id, Value: n.ID}), opts.Order, 1)
		}
		return nil, nil
	}
	pn := parent.TreeNode()

	q := t.inScope(db, n.Scope).
		Where(clause.Gt{Column: t.col.left, Value: pn.Left}).
		Where(clause.Lt{Column: t.col.right, Value: pn.Right}).
		Where(clause.Eq{Column: t.col.level, Value: n.Level})
	if !opts.IncludeSelf {
		q = q.Where(clause.Neq{Column: t.col.id, Value: n.ID})
	}

	rows, err := t.list(q, opts.Order, 0)
	if err != nil {
		return nil, fmt.Errorf("loading siblings of node %d: %w", n.ID, err)
	}
	return rows, nil
}

// Siblings returns the other children of n's parent.
func (t *Tree[T, P]) Siblings(ctx context.Context, n P, opts SiblingsOptions) ([]P, error) {
	return t.siblings(t.db.WithContext(ctx), n.TreeNode(), opts)
}

// NextSibling returns the node following n in preorder within its scope.
//
// Despite the name this is not restricted to n's level: for a node with
// children it is the first child, for a last child it is whatever comes after
// the parent. Use Siblings for same-level neighbours.
func (t *Tree[T, P]) NextSibling(ctx context.Context, n P) (P, error) {
	nn := n.TreeNode()
	q := t.inScope(t.db.WithContext(ctx), nn.Scope).Where(clause.Gt{Column: t.col.left, Value: nn.Left})
	return t.first(q, Ascending)
}

// PrevSibling returns the node preceding n in preorder within its scope. Like
// NextSibling it ignores levels.
func (t *Tree[T, P]) PrevSibling(ctx context.Context, n P) (P, error) {
	nn := n.TreeNode()
	q := t.inScope(t.db.WithContext(ctx), nn.Scope).Where(clause.Lt{Column: t.col.left, Value: nn.Left})
	return t.first(q, Descending)
}

// Shortcuts with default arguments.

func (t *Tree[T, P]) AllParents(ctx context.Context, n P) ([]P, error) {
	return t.Parents(ctx, n, ParentsOptions{})
}

func (t *Tree[T, P]) AllChildren(ctx context.Context, n P) ([]P, error) {
	return t.Children(ctx, n, ChildrenOptions{})
}

func (t *Tree[T, P]) FirstChild(ctx context.Context, n P) (P, error) {
	return t.firstOf(t.Children(ctx, n, ChildrenOptions{Limit: 1}))
}

func (t *Tree[T, P]) LastChild(ctx context.Context, n P) (P, error) {
	return t.firstOf(t.Children(ctx, n, ChildrenOptions{Order: Descending, Limit: 1}))
}

func (t *Tree[T, P]) AllSiblings(ctx context.Context, n P) ([]P, error) {
	return t.Siblings(ctx, n, SiblingsOptions{})
}

func (t *Tree[T, P]) RootOf(ctx context.Context, n P) (P, error) {
	return t.Root(ctx, n.TreeNode().Scope)
}

func (t *Tree[T, P]) AllLeaves(ctx context.Context, n P) ([]P, error) {
	return t.Leaves(ctx, n, LeavesOptions{})
}

func (t *Tree[T, P]) AllDescendants(ctx context.Context, n P) ([]P, error) {
	return t.Descendants(ctx, n, DescendantsOptions{})
}

func (t *Tree[T, P]) firstOf(rows []P, err error) (P, error) {
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// IsChildOf reports whether target is n's direct parent.
func (t *Tree[T, P]) IsChildOf(ctx context.Context, n, target P) (bool, error) {
	parent, err := t.Parent(ctx, n)
	if err != nil || parent == nil {
		return false, err
	}
	return parent.TreeNode().ID == target.TreeNode().ID, nil
}

// IsParentOf reports whether n is target's direct parent.
func (t *Tree[T, P]) IsParentOf(ctx context.Context, n, target P) (bool, error) {
	return t.IsChildOf(ctx, target, n)
}

// IsSiblingOf reports whether n and target are distinct nodes sharing a parent.
func (t *Tree[T, P]) IsSiblingOf(ctx context.Context, n, target P) (bool, error) {
	if n.TreeNode().ID == target.TreeNode().ID {
		return false, nil
	}
	a, err := t.Parent(ctx, n)
	if err != nil || a == nil {
		return false, err
	}
	b, err := t.Parent(ctx, target)
	if err != nil || b == nil {
		return false, err
	}
	return a.TreeNode().ID == b.TreeNode().ID, nil
}

// Scopes lists the scopes present in the table, ascending.
func (t *Tree[T, P]) Scopes(ctx context.Context) ([]int, error) {
	return t.scopes(t.db.WithContext(ctx))
}

func (t *Tree[T, P]) scopes(db *gorm.DB) ([]int, error) {
	var scopes []int
	if err := t.model(db).Distinct(t.col.scope).Order(clause.OrderByColumn{Column: t.column(t.col.scope)}).Pluck(t.col.scope, &scopes).Error; err != nil {
		return nil, fmt.Errorf("listing scopes: %w", err)
	}
	return scopes, nil
}

// ListItem is one row of SelectList.
type ListItem struct {
	ID    uint64
	Level int
	Label string
}

// SelectList returns every node of scope in preorder, labelled by label and
// indented with one copy of indent per level.
func (t *Tree[T, P]) SelectList(ctx context.Context, scope int, label func(P) string, indent string) ([]ListItem, error) {
	rows, err := t.list(t.inScope(t.db.WithContext(ctx), scope), Ascending, 0)
	if err != nil {
		return nil, fmt.Errorf("listing scope %d: %w", scope, err)
	}

	items := make([]ListItem, 0, len(rows))
	for _, r := range rows {
		rn := r.TreeNode()
		items = append(items, ListItem{
			ID:    rn.ID,
			Level: rn.Level,
			Label: strings.Repeat(indent, rn.Level) + label(r),
		})
	}
	return items, nil
}
