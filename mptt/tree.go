// Package mptt maintains trees stored as flat rows using the nested set
// (modified preorder tree traversal) encoding.
//
// Every row carries a left/right interval, a level and a scope. A scope is one
// independent tree with exactly one root at left = 1. Ancestry, depth and
// subtree membership are plain numeric comparisons on those four columns, so
// reads never recurse. Mutations renumber a range of other rows and therefore
// run under a table-wide lock.
package mptt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("mptt")

type Options struct {
	// Transactional runs each mutation inside one database transaction. When
	// false the statements run on their own and the explicit gap compensation
	// is the only rollback, as with a non-transactional storage engine.
	Transactional bool

	// LockTable additionally takes a database level table lock inside the
	// mutation's transaction, so trees in separate processes exclude each
	// other. Only postgres honours it, and only when Transactional is set.
	LockTable bool

	// Locker serializes mutations in this process. Nil uses a process-wide
	// locker shared by all trees.
	Locker Locker

	// VerifyConcurrency bounds how many scopes VerifyTree checks at once.
	VerifyConcurrency int

	Logger *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Transactional:     true,
		LockTable:         true,
		VerifyConcurrency: 4,
	}
}

// Tree binds the engine to the table of the gorm model T. P is *T and is
// inferred, so a tree is built with NewTree[Category](db, nil).
type Tree[T any, P interface {
	*T
	Model
}] struct {
	db     *gorm.DB
	table  string
	qtable string
	col    columns
	quote  func(name any) string
	locker Locker
	opts   Options
	log    *slog.Logger
}

type columns struct {
	id    string
	left  string
	right string
	level string
	scope string
}

func NewTree[T any, P interface {
	*T
	Model
}](db *gorm.DB, opts *Options) (*Tree[T, P], error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if err := db.Use(Plugin{}); err != nil && !errors.Is(err, gorm.ErrRegistered) {
		return nil, fmt.Errorf("registering mptt plugin: %w", err)
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parsing tree model: %w", err)
	}
	sch := stmt.Schema

	if len(sch.PrimaryFields) != 1 {
		return nil, fmt.Errorf("%w: %s declares %d primary key fields", ErrCompositeKey, sch.Name, len(sch.PrimaryFields))
	}

	col := columns{id: sch.PrimaryFields[0].DBName}
	for name, dst := range map[string]*string{
		"Left":  &col.left,
		"Right": &col.right,
		"Level": &col.level,
		"Scope": &col.scope,
	} {
		f := sch.LookUpField(name)
		if f == nil || f.DBName == "" {
			return nil, fmt.Errorf("%w: %s has no %s field", ErrNotTreeModel, sch.Name, name)
		}
		*dst = f.DBName
	}

	locker := opts.Locker
	if locker == nil {
		locker = defaultLocker
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("system", "mptt")
	}
	logger = logger.With("table", sch.Table)

	if opts.VerifyConcurrency < 1 {
		opts.VerifyConcurrency = 1
	}

	return &Tree[T, P]{
		db:     db,
		table:  sch.Table,
		qtable: stmt.Quote(sch.Table),
		col:    col,
		quote:  stmt.Quote,
		locker: locker,
		opts:   *opts,
		log:    logger,
	}, nil
}

// Table is the name of the backing table.
func (t *Tree[T, P]) Table() string {
	return t.table
}

// Migrate creates or updates the backing table.
func (t *Tree[T, P]) Migrate(ctx context.Context) error {
	return t.db.WithContext(ctx).AutoMigrate(new(T))
}

// mutate runs fn holding the tree lock, inside a transaction when configured.
// The lock is released on every exit path.
func (t *Tree[T, P]) mutate(ctx context.Context, op string, fn func(tx *gorm.DB) error) (err error) {
	ctx, span := tracer.Start(ctx, "mptt."+op, trace.WithAttributes(
		attribute.String("table", t.table),
	))
	start := time.Now()
	defer func() {
		mutationsTotal.WithLabelValues(t.table, op, outcome(err)).Inc()
		mutationDuration.WithLabelValues(t.table, op).Observe(time.Since(start).Seconds())
		if err != nil && !IsRejected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	release, err := t.locker.Lock(ctx, t.table)
	if err != nil {
		return fmt.Errorf("acquiring tree lock on %s: %w", t.table, err)
	}
	defer release()
	lockWait.WithLabelValues(t.table).Observe(time.Since(start).Seconds())

	db := t.db.WithContext(ctx)
	if !t.opts.Transactional {
		return fn(db)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if t.opts.LockTable {
			if err := lockTable(tx, t.qtable); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

func (t *Tree[T, P]) model(db *gorm.DB) *gorm.DB {
	return db.Model(new(T))
}

func (t *Tree[T, P]) inScope(db *gorm.DB, scope int) *gorm.DB {
	return db.Model(new(T)).Where(clause.Eq{Column: t.col.scope, Value: scope})
}

func (t *Tree[T, P]) column(name string) clause.Column {
	return clause.Column{Name: name}
}

func (t *Tree[T, P]) pointers(rows []T) []P {
	out := make([]P, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out
}

// load fetches a row by identity; a missing row is nil, nil.
func (t *Tree[T, P]) load(db *gorm.DB, id uint64) (P, error) {
	var rows []T
	if err := t.model(db).Where(clause.Eq{Column: t.col.id, Value: id}).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading node %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return P(&rows[0]), nil
}

// reload copies n's current tree columns from the table into n.
func (t *Tree[T, P]) reload(db *gorm.DB, n Model) (bool, error) {
	nn := n.TreeNode()
	fresh, err := t.load(db, nn.ID)
	if err != nil || fresh == nil {
		return false, err
	}
	nn.setPosition(fresh.TreeNode().position())
	return true, nil
}

// Load returns the node with the given identity, or nil if there is none.
func (t *Tree[T, P]) Load(ctx context.Context, id uint64) (P, error) {
	return t.load(t.db.WithContext(ctx), id)
}

// Reload refreshes n's tree columns in place. It reports false if n is no
// longer in the table.
func (t *Tree[T, P]) Reload(ctx context.Context, n P) (bool, error) {
	if !n.TreeNode().Persisted() {
		return false, nil
	}
	return t.reload(t.db.WithContext(ctx), n)
}
