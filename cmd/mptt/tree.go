package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/roelfsche/jelly-mptt/pkg/env"

	cli "github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var positionFlags = []cli.Flag{
	&cli.BoolFlag{Name: "first-child", Usage: "place before the target's existing children"},
	&cli.BoolFlag{Name: "last-child", Usage: "place after the target's existing children"},
	&cli.BoolFlag{Name: "prev-sibling", Usage: "place directly before the target"},
	&cli.BoolFlag{Name: "next-sibling", Usage: "place directly after the target"},
}

// position returns the single position flag that was given.
func position(cctx *cli.Context) (string, error) {
	var picked []string
	for _, name := range []string{"first-child", "last-child", "prev-sibling", "next-sibling"} {
		if cctx.Bool(name) {
			picked = append(picked, name)
		}
	}
	if len(picked) != 1 {
		return "", fmt.Errorf("exactly one of --first-child, --last-child, --prev-sibling, --next-sibling is required")
	}
	return picked[0], nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid node id: %q", s)
	}
	return id, nil
}

// loadNode fetches the node named by the positional argument at idx.
func loadNode(ctx context.Context, tree *models.CategoryTree, cctx *cli.Context, idx int) (*models.Category, error) {
	id, err := parseID(cctx.Args().Get(idx))
	if err != nil {
		return nil, err
	}
	n, err := tree.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("node not found: %d", id)
	}
	return n, nil
}

func describe(c *models.Category) string {
	return fmt.Sprintf("%d %s [scope=%d left=%d right=%d level=%d]", c.ID, c.Name, c.Scope, c.Left, c.Right, c.Level)
}

var cmdMigrate = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the category table",
	Action: func(cctx *cli.Context) error {
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()
		return tree.Migrate(cctx.Context)
	},
}

var cmdScopes = &cli.Command{
	Name:  "scopes",
	Usage: "list the scopes (independent hierarchies) in the table",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		scopes, err := tree.Scopes(ctx)
		if err != nil {
			return err
		}
		for _, s := range scopes {
			root, err := tree.Root(ctx, s)
			if err != nil {
				return err
			}
			if root == nil {
				fmt.Printf("%d\t(no root)\n", s)
				continue
			}
			fmt.Printf("%d\t%s\t%d nodes\n", s, root.Name, root.Count())
		}
		return nil
	},
}

var cmdPrint = &cli.Command{
	Name:  "print",
	Usage: "render one scope as an ASCII tree",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scope", Value: 1},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		root, err := tree.Root(ctx, cctx.Int("scope"))
		if err != nil {
			return err
		}
		if root == nil {
			return fmt.Errorf("scope %d has no root", cctx.Int("scope"))
		}

		nodes, err := tree.Descendants(ctx, root, mptt.DescendantsOptions{})
		if err != nil {
			return err
		}

		fmt.Println(render(root, nodes).String())
		return nil
	},
}

// render builds a printable tree from root and its descendants in preorder.
func render(root *models.Category, nodes []*models.Category) treeprint.Tree {
	out := treeprint.NewWithRoot(fmt.Sprintf("%s (%d)", root.Name, root.ID))

	// branches[i] is the open branch of the most recent node at level i
	branches := []treeprint.Tree{out}
	for _, n := range nodes {
		parent := branches[n.Level-root.Level-1]
		label := fmt.Sprintf("%s (%d)", n.Name, n.ID)

		var b treeprint.Tree
		if n.HasChildren() {
			b = parent.AddBranch(label)
		} else {
			b = parent.AddNode(label)
		}
		branches = append(branches[:n.Level-root.Level], b)
	}
	return out
}

var cmdList = &cli.Command{
	Name:  "list",
	Usage: "list one scope in preorder, indented by level",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scope", Value: 1},
		&cli.StringFlag{Name: "indent", Value: "  "},
	},
	Action: func(cctx *cli.Context) error {
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		items, err := tree.SelectList(cctx.Context, cctx.Int("scope"), (*models.Category).Label, cctx.String("indent"))
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Printf("%d\t%s\n", it.ID, it.Label)
		}
		return nil
	},
}

var cmdAddRoot = &cli.Command{
	Name:      "add-root",
	Usage:     "start a new hierarchy",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scope", Usage: "scope to create; defaults to the next free one"},
	},
	Action: func(cctx *cli.Context) error {
		name := strings.Join(cctx.Args().Slice(), " ")
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		node := &models.Category{Name: name}
		if cctx.IsSet("scope") {
			err = tree.InsertAsNewRootInScope(cctx.Context, node, cctx.Int("scope"))
		} else {
			err = tree.InsertAsNewRoot(cctx.Context, node)
		}
		if err != nil {
			return err
		}
		fmt.Println(describe(node))
		return nil
	},
}

var cmdAdd = &cli.Command{
	Name:      "add",
	Usage:     "insert a new node relative to an existing one",
	ArgsUsage: "<target-id> <name>",
	Flags:     positionFlags,
	Action: func(cctx *cli.Context) error {
		pos, err := position(cctx)
		if err != nil {
			return err
		}
		if cctx.Args().Len() < 2 {
			return fmt.Errorf("expected a target id and a name")
		}
		target, err := parseID(cctx.Args().First())
		if err != nil {
			return err
		}

		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		node := &models.Category{Name: strings.Join(cctx.Args().Tail(), " ")}
		insert := map[string]func(context.Context, *models.Category, mptt.Target) error{
			"first-child":  tree.InsertAsFirstChild,
			"last-child":   tree.InsertAsLastChild,
			"prev-sibling": tree.InsertAsPrevSibling,
			"next-sibling": tree.InsertAsNextSibling,
		}[pos]
		if err := insert(cctx.Context, node, mptt.ByID(target)); err != nil {
			return err
		}
		fmt.Println(describe(node))
		return nil
	},
}

var cmdMove = &cli.Command{
	Name:      "move",
	Usage:     "move a node and its subtree relative to another node",
	ArgsUsage: "<id> <target-id>",
	Flags:     positionFlags,
	Action: func(cctx *cli.Context) error {
		pos, err := position(cctx)
		if err != nil {
			return err
		}
		if cctx.Args().Len() != 2 {
			return fmt.Errorf("expected a node id and a target id")
		}
		target, err := parseID(cctx.Args().Get(1))
		if err != nil {
			return err
		}

		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		node, err := loadNode(ctx, tree, cctx, 0)
		if err != nil {
			return err
		}
		move := map[string]func(context.Context, *models.Category, mptt.Target) error{
			"first-child":  tree.MoveToFirstChild,
			"last-child":   tree.MoveToLastChild,
			"prev-sibling": tree.MoveToPrevSibling,
			"next-sibling": tree.MoveToNextSibling,
		}[pos]
		if err := move(ctx, node, mptt.ByID(target)); err != nil {
			return err
		}
		fmt.Println(describe(node))
		return nil
	},
}

var cmdDelete = &cli.Command{
	Name:      "delete",
	Usage:     "delete a node together with its whole subtree",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		node, err := loadNode(ctx, tree, cctx, 0)
		if err != nil {
			return err
		}
		removed := node.Count()
		if err := tree.Delete(ctx, node); err != nil {
			return err
		}
		fmt.Printf("deleted %d nodes\n", removed)
		return nil
	},
}

var cmdCopyScope = &cli.Command{
	Name:      "copy-scope",
	Usage:     "duplicate a whole hierarchy into a new scope",
	ArgsUsage: "<root-id>",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		root, err := loadNode(ctx, tree, cctx, 0)
		if err != nil {
			return err
		}
		copied, err := tree.CopyScope(ctx, root)
		if err != nil {
			return err
		}
		fmt.Println(describe(copied))
		return nil
	},
}

var cmdVersion = &cli.Command{
	Name:  "version",
	Usage: "print the build version",
	Action: func(cctx *cli.Context) error {
		fmt.Println(env.CurrentVersion())
		return nil
	},
}

// exitOnIntegrity reports an integrity failure with a distinct exit code so
// scripts can tell it apart from connection problems.
func exitOnIntegrity(err error) error {
	var ie *mptt.IntegrityError
	if errors.As(err, &ie) {
		fmt.Fprintln(os.Stderr, ie.Error())
		return cli.Exit("integrity check failed", 2)
	}
	return err
}
