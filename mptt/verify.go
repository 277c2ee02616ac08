package mptt

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerifyScope audits one scope. It returns nil when the scope is sound, an
// *IntegrityError naming the first failed check, or a storage error. It is a
// diagnostic: it takes no lock and mutations never call it.
func (t *Tree[T, P]) VerifyScope(ctx context.Context, scope int) (err error) {
	ctx, span := tracer.Start(ctx, "mptt.VerifyScope", trace.WithAttributes(
		attribute.String("table", t.table),
		attribute.Int("scope", scope),
	))
	defer func() {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			verifyFailures.WithLabelValues(t.table, ie.Check).Inc()
			span.SetAttributes(attribute.String("check", ie.Check))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	db := t.db.WithContext(ctx)
	fail := func(check, format string, args ...any) error {
		return &IntegrityError{Table: t.table, Scope: scope, Check: check, Detail: fmt.Sprintf(format, args...)}
	}

	var roots int64
	if err := t.inScope(db, scope).Where(clause.Eq{Column: t.col.left, Value: 1}).Count(&roots).Error; err != nil {
		return fmt.Errorf("counting roots: %w", err)
	}
	if roots != 1 {
		return fail(CheckRoot, "%d nodes with left = 1", roots)
	}

	root, err := t.root(db, scope)
	if err != nil {
		return err
	}
	rn := root.TreeNode()
	if rn.Level != 0 {
		return fail(CheckRoot, "root %d has level %d", rn.ID, rn.Level)
	}
	end := rn.Right

	var n int64
	if err := t.inScope(db, scope).
		Where(clause.Or(
			clause.Gt{Column: t.col.left, Value: end},
			clause.Gt{Column: t.col.right, Value: end},
		)).Count(&n).Error; err != nil {
		return fmt.Errorf("counting out of bounds nodes: %w", err)
	}
	if n > 0 {
		return fail(CheckBounds, "%d nodes reach past the root's right of %d", n, end)
	}

	if err := t.inScope(db, scope).
		Where(clause.Expr{SQL: "? >= ?", Vars: []any{t.column(t.col.left), t.column(t.col.right)}}).
		Count(&n).Error; err != nil {
		return fmt.Errorf("counting inverted nodes: %w", err)
	}
	if n > 0 {
		return fail(CheckInverted, "%d nodes with left >= right", n)
	}

	if err := t.inScope(db, scope).
		Where(clause.Expr{SQL: "(? - ?) % 2 = 0", Vars: []any{t.column(t.col.right), t.column(t.col.left)}}).
		Count(&n).Error; err != nil {
		return fmt.Errorf("counting even width nodes: %w", err)
	}
	if n > 0 {
		return fail(CheckParity, "%d nodes with an even right - left", n)
	}

	dup, err := t.sharedBoundaries(db, scope)
	if err != nil {
		return err
	}
	if len(dup) > 0 {
		return fail(CheckDuplicate, "boundary %d is used more than once", dup[0])
	}

	if total := int64(end / 2); total > 0 {
		var count int64
		if err := t.inScope(db, scope).Count(&count).Error; err != nil {
			return fmt.Errorf("counting nodes: %w", err)
		}
		if count != total {
			return fail(CheckCount, "root spans %d nodes but scope holds %d", total, count)
		}
	}

	overlap, err := t.firstOverlap(db, scope)
	if err != nil {
		return err
	}
	if overlap != nil {
		return fail(CheckOverlap, "intervals of nodes %d and %d partially overlap", overlap[0], overlap[1])
	}

	bad, err := t.firstMisleveled(db, scope)
	if err != nil {
		return err
	}
	if bad != 0 {
		return fail(CheckLevel, "node %d has a level that differs from its depth", bad)
	}

	return nil
}

// sharedBoundaries returns values used more than once as a left or right.
func (t *Tree[T, P]) sharedBoundaries(db *gorm.DB, scope int) ([]int, error) {
	sql := fmt.Sprintf(
		`SELECT b.v FROM (SELECT %[2]s AS v FROM %[1]s WHERE %[4]s = ? UNION ALL SELECT %[3]s AS v FROM %[1]s WHERE %[4]s = ?) b GROUP BY b.v HAVING COUNT(*) > 1 ORDER BY b.v LIMIT 5`,
		t.qtable, t.quote(t.col.left), t.quote(t.col.right), t.quote(t.col.scope),
	)
	var out []int
	if err := db.Raw(sql, scope, scope).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("looking for shared boundaries: %w", err)
	}
	return out, nil
}

func (t *Tree[T, P]) firstOverlap(db *gorm.DB, scope int) ([]uint64, error) {
	sql := fmt.Sprintf(
		`SELECT a.%[2]s AS a_id, b.%[2]s AS b_id FROM %[1]s a JOIN %[1]s b ON a.%[5]s = b.%[5]s AND a.%[3]s < b.%[3]s AND b.%[3]s < a.%[4]s AND a.%[4]s < b.%[4]s WHERE a.%[5]s = ? LIMIT 1`,
		t.qtable, t.quote(t.col.id), t.quote(t.col.left), t.quote(t.col.right), t.quote(t.col.scope),
	)
	var pairs []struct {
		AID uint64 `gorm:"column:a_id"`
		BID uint64 `gorm:"column:b_id"`
	}
	if err := db.Raw(sql, scope).Scan(&pairs).Error; err != nil {
		return nil, fmt.Errorf("looking for overlapping intervals: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	return []uint64{pairs[0].AID, pairs[0].BID}, nil
}

func (t *Tree[T, P]) firstMisleveled(db *gorm.DB, scope int) (uint64, error) {
	sql := fmt.Sprintf(
		`SELECT c.%[2]s FROM %[1]s c WHERE c.%[6]s = ? AND c.%[5]s <> (SELECT COUNT(*) FROM %[1]s p WHERE p.%[6]s = c.%[6]s AND p.%[3]s < c.%[3]s AND p.%[4]s > c.%[4]s) ORDER BY c.%[3]s LIMIT 1`,
		t.qtable, t.quote(t.col.id), t.quote(t.col.left), t.quote(t.col.right), t.quote(t.col.level), t.quote(t.col.scope),
	)
	var ids []uint64
	if err := db.Raw(sql, scope).Scan(&ids).Error; err != nil {
		return 0, fmt.Errorf("looking for misleveled nodes: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// VerifyTree runs VerifyScope over every scope and passes only if all do.
func (t *Tree[T, P]) VerifyTree(ctx context.Context) error {
	scopes, err := t.Scopes(ctx)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.opts.VerifyConcurrency)
	for _, scope := range scopes {
		eg.Go(func() error {
			return t.VerifyScope(ctx, scope)
		})
	}
	return eg.Wait()
}
