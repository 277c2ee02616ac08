package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/roelfsche/jelly-mptt/internal/ticker"
	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/roelfsche/jelly-mptt/pkg/metrics"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var cmdVerify = &cli.Command{
	Name:  "verify",
	Usage: "check the nested set invariants of one or all scopes",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scope", Usage: "only check this scope"},
		&cli.DurationFlag{
			Name:  "watch",
			Usage: "keep checking at this interval instead of exiting",
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics while watching",
			Value:   ":3989",
			EnvVars: []string{"MPTT_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		tree, cleanup, err := openTree(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		check := func(ctx context.Context) error {
			if cctx.IsSet("scope") {
				return tree.VerifyScope(ctx, cctx.Int("scope"))
			}
			return tree.VerifyTree(ctx)
		}

		if cctx.Duration("watch") <= 0 {
			if err := check(cctx.Context); err != nil {
				return exitOnIntegrity(err)
			}
			fmt.Println("ok")
			return nil
		}

		return watch(cctx, tree, check)
	},
}

// watch re-runs check until interrupted. Integrity failures are logged and
// counted but do not stop the loop; storage errors do.
func watch(cctx *cli.Context, tree *models.CategoryTree, check func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("system", "verify", "table", tree.Table())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return metrics.RunServer(ctx, cctx.String("metrics-listen"))
	})
	eg.Go(func() error {
		return ticker.Periodically(ctx, cctx.Duration("watch"), func(ctx context.Context) error {
			err := check(ctx)
			var ie *mptt.IntegrityError
			switch {
			case err == nil:
				logger.Info("tree verified")
			case errors.As(err, &ie):
				logger.Error("integrity check failed", "scope", ie.Scope, "check", ie.Check, "detail", ie.Detail)
			default:
				return err
			}
			return nil
		})
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
