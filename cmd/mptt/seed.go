package main

import (
	"fmt"
	"log/slog"

	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"

	"github.com/brianvoe/gofakeit/v6"
	cli "github.com/urfave/cli/v2"
)

var cmdSeed = &cli.Command{
	Name:  "seed",
	Usage: "fill the table with randomly shaped hierarchies, for trying things out",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scopes", Value: 1, Usage: "number of new hierarchies"},
		&cli.IntFlag{Name: "nodes", Value: 50, Usage: "nodes to add below each root"},
		&cli.Int64Flag{Name: "seed", Value: 1, Usage: "random seed; equal seeds give equal shapes"},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		faker := gofakeit.New(cctx.Int64("seed"))
		for range cctx.Int("scopes") {
			root := &models.Category{Name: faker.BuzzWord(), Description: faker.Sentence(8)}
			if err := tree.InsertAsNewRoot(ctx, root); err != nil {
				return err
			}

			placed := []*models.Category{root}
			for range cctx.Int("nodes") {
				n := &models.Category{Name: faker.BuzzWord(), Description: faker.Sentence(8)}
				target := placed[faker.IntRange(0, len(placed)-1)]

				var err error
				switch choice := faker.IntRange(0, 3); {
				case target.IsRoot() || choice == 0:
					err = tree.InsertAsLastChild(ctx, n, mptt.ByID(target.ID))
				case choice == 1:
					err = tree.InsertAsFirstChild(ctx, n, mptt.ByID(target.ID))
				case choice == 2:
					err = tree.InsertAsPrevSibling(ctx, n, mptt.ByID(target.ID))
				default:
					err = tree.InsertAsNextSibling(ctx, n, mptt.ByID(target.ID))
				}
				if err != nil {
					return err
				}
				placed = append(placed, n)
			}

			slog.Info("seeded scope", "scope", root.Scope, "nodes", len(placed))
			fmt.Printf("scope %d: %d nodes\n", root.Scope, len(placed))
		}
		return nil
	},
}
