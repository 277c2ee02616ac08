package mptt

// Nested holds the columns that encode a node's position in its tree. Embed it
// in a gorm model to make that model a tree node:
//
//	type Category struct {
//		mptt.Nested
//		Name string
//	}
//
// The interval fields are owned by Tree. Callers may read them but must never
// write them; every change goes through the insert, move and delete methods.
type Nested struct {
	ID    uint64 `gorm:"primarykey"`
	Left  int    `gorm:"column:lft;not null;index:,composite:nested,priority:2"`
	Right int    `gorm:"column:rgt;not null;index:,composite:nested,priority:3"`
	Level int    `gorm:"column:lvl;not null"`
	Scope int    `gorm:"column:scope;not null;index:,composite:nested,priority:1"`
}

// Model is implemented by every struct embedding Nested.
type Model interface {
	TreeNode() *Nested
}

// TreeNode returns the node's tree columns.
func (n *Nested) TreeNode() *Nested {
	return n
}

// Persisted reports whether the node has been written to the table.
func (n *Nested) Persisted() bool {
	return n.ID != 0
}

// HasChildren reports whether the node's interval contains any other node.
func (n *Nested) HasChildren() bool {
	return n.Right-n.Left > 1
}

// IsLeaf is the negation of HasChildren.
func (n *Nested) IsLeaf() bool {
	return !n.HasChildren()
}

// IsRoot reports whether the node is the root of its scope.
func (n *Nested) IsRoot() bool {
	return n.Left == 1
}

// IsDescendantOf reports whether n lies strictly inside of's interval.
func (n *Nested) IsDescendantOf(of *Nested) bool {
	return n.Left > of.Left && n.Right < of.Right && n.Scope == of.Scope
}

// IsAncestorOf reports whether n strictly contains d.
func (n *Nested) IsAncestorOf(d *Nested) bool {
	return d.IsDescendantOf(n)
}

// Contains is IsAncestorOf, but also true when d is n.
func (n *Nested) Contains(d *Nested) bool {
	return n.Scope == d.Scope && n.Left <= d.Left && n.Right >= d.Right
}

// Size is the width of the node's interval, right - left + 1. It is twice the
// number of nodes in the subtree and is the amount of space a move or delete
// of this subtree opens or closes.
func (n *Nested) Size() int {
	return n.Right - n.Left + 1
}

// Count is the number of nodes in the subtree rooted at n, n included.
func (n *Nested) Count() int {
	return n.Size() / 2
}

// position returns the node's tree columns without its identity.
func (n *Nested) position() Nested {
	return Nested{Left: n.Left, Right: n.Right, Level: n.Level, Scope: n.Scope}
}

func (n *Nested) setPosition(p Nested) {
	n.Left, n.Right, n.Level, n.Scope = p.Left, p.Right, p.Level, p.Scope
}
