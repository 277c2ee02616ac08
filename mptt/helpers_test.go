package mptt_test

import (
	"testing"

	"github.com/roelfsche/jelly-mptt/internal/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// box is a node's left, right and level.
type box [3]int

// sample is R(1,12) > A(2,7) > [A1(3,4), A2(5,6)], B(8,9), C(10,11).
var sample = testutil.Shape{
	Name: "R",
	Children: []testutil.Shape{
		{Name: "A", Children: []testutil.Shape{{Name: "A1"}, {Name: "A2"}}},
		{Name: "B"},
		{Name: "C"},
	},
}

var sampleBoxes = map[string]box{
	"R":  {1, 12, 0},
	"A":  {2, 7, 1},
	"A1": {3, 4, 2},
	"A2": {5, 6, 2},
	"B":  {8, 9, 1},
	"C":  {10, 11, 1},
}

// assertShape checks the stored boxes of every row against want.
func assertShape(t *testing.T, db *gorm.DB, want map[string]box) {
	t.Helper()

	got := map[string]box{}
	for name, n := range testutil.Snapshot(t, db) {
		got[name] = box{n.Left, n.Right, n.Level}
	}
	assert.Equal(t, want, got)
}

func names[P interface{ Label() string }](nodes []P) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Label())
	}
	return out
}
