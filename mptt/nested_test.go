package mptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalPredicates(t *testing.T) {
	assert := assert.New(t)

	// A(1,8) > B(2,5) > C(3,4), D(6,7)
	a := &Nested{ID: 1, Left: 1, Right: 8, Scope: 1}
	b := &Nested{ID: 2, Left: 2, Right: 5, Level: 1, Scope: 1}
	c := &Nested{ID: 3, Left: 3, Right: 4, Level: 2, Scope: 1}
	d := &Nested{ID: 4, Left: 6, Right: 7, Level: 1, Scope: 1}
	other := &Nested{ID: 5, Left: 3, Right: 4, Level: 2, Scope: 2}

	assert.True(a.IsRoot())
	assert.False(b.IsRoot())

	assert.True(a.HasChildren())
	assert.True(b.HasChildren())
	assert.False(c.HasChildren())
	assert.True(c.IsLeaf())
	assert.True(d.IsLeaf())

	assert.True(c.IsDescendantOf(a))
	assert.True(c.IsDescendantOf(b))
	assert.False(c.IsDescendantOf(d))
	assert.False(a.IsDescendantOf(a))
	assert.False(other.IsDescendantOf(a))

	assert.True(a.IsAncestorOf(d))
	assert.False(d.IsAncestorOf(a))
	assert.False(b.IsAncestorOf(b))

	assert.True(b.Contains(b))
	assert.True(b.Contains(c))
	assert.False(b.Contains(d))
	assert.False(a.Contains(other))

	assert.Equal(8, a.Size())
	assert.Equal(4, a.Count())
	assert.Equal(2, c.Size())
	assert.Equal(1, c.Count())
}

func TestPositionKeepsIdentity(t *testing.T) {
	n := &Nested{ID: 7, Left: 2, Right: 3, Level: 1, Scope: 4}
	n.setPosition(Nested{ID: 99, Left: 10, Right: 11, Level: 3, Scope: 5})

	assert.Equal(t, Nested{ID: 7, Left: 10, Right: 11, Level: 3, Scope: 5}, *n)
	assert.Equal(t, Nested{Left: 10, Right: 11, Level: 3, Scope: 5}, n.position())
}
