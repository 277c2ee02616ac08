package main

import (
	"strings"
	"testing"

	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/stretchr/testify/assert"
)

func category(id uint64, name string, left, right, level int) *models.Category {
	return &models.Category{
		Nested: mptt.Nested{ID: id, Left: left, Right: right, Level: level, Scope: 1},
		Name:   name,
	}
}

func TestRender(t *testing.T) {
	root := category(1, "root", 1, 10, 0)
	nodes := []*models.Category{
		category(2, "a", 2, 7, 1),
		category(3, "a1", 3, 4, 2),
		category(4, "a2", 5, 6, 2),
		category(5, "b", 8, 9, 1),
	}

	out := render(root, nodes).String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 5)
	assert.Equal(t, "root (1)", lines[0])
	assert.Contains(t, lines[1], "a (2)")
	assert.Contains(t, lines[2], "a1 (3)")
	assert.Contains(t, lines[3], "a2 (4)")
	assert.Contains(t, lines[4], "b (5)")

	// grandchildren are indented deeper than children
	assert.Greater(t, strings.Index(lines[2], "a1"), strings.Index(lines[1], "a"))
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"", "0", "-1", "x"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
