package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roelfsche/jelly-mptt/models"
	"github.com/roelfsche/jelly-mptt/mptt"
	"github.com/roelfsche/jelly-mptt/pkg/env"
	"github.com/roelfsche/jelly-mptt/util/cliutil"

	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "mptt",
		Usage:   "inspect and edit nested set hierarchies stored in a database",
		Version: env.CurrentVersion(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite://path or postgres://...)",
			Value:   "sqlite://data/mptt/tree.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   8,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit a span for every SQL statement",
			EnvVars: []string{"MPTT_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MPTT_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Before = func(cctx *cli.Context) error {
		_, err := cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")})
		return err
	}

	app.Commands = []*cli.Command{
		cmdMigrate,
		cmdScopes,
		cmdPrint,
		cmdList,
		cmdAddRoot,
		cmdAdd,
		cmdMove,
		cmdDelete,
		cmdCopyScope,
		cmdSeed,
		cmdVerify,
		cmdVersion,
	}

	return app.Run(args)
}

// setupTracing installs an OTLP exporter when OTEL_EXPORTER_OTLP_ENDPOINT is
// set. The returned func flushes it.
func setupTracing(ctx context.Context) (func(), error) {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep == "" {
		return func() {}, nil
	}
	slog.Info("setting up trace exporter", "endpoint", ep)

	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("mptt"),
			attribute.String("env", os.Getenv("ENVIRONMENT")),
			attribute.String("environment", os.Getenv("ENVIRONMENT")),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace exporter", "error", err)
		}
	}, nil
}

// openTree connects to the database and binds the category tree to it. The
// returned func releases tracing and the connection pool.
func openTree(cctx *cli.Context) (*models.CategoryTree, func(), error) {
	shutdown, err := setupTracing(cctx.Context)
	if err != nil {
		return nil, nil, err
	}

	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	if cctx.Bool("db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("failed to set up db tracing: %w", err)
		}
	}

	tree, err := models.NewCategoryTree(db, mptt.DefaultOptions())
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	cleanup := func() {
		if sqldb, err := db.DB(); err == nil {
			_ = sqldb.Close()
		}
		shutdown()
	}
	return tree, cleanup, nil
}
