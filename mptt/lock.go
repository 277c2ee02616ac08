package mptt

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"
)

// Locker hands out exclusive locks by name. Tree takes the lock named after its
// table around every mutation and always calls the returned release func, on
// success, on error and on panic.
type Locker interface {
	Lock(ctx context.Context, name string) (release func(), err error)
}

// ProcessLocker serializes holders of the same name within one process.
type ProcessLocker struct {
	slots *xsync.MapOf[string, chan struct{}]
}

func NewProcessLocker() *ProcessLocker {
	return &ProcessLocker{
		slots: xsync.NewMapOf[string, chan struct{}](),
	}
}

// defaultLocker is shared by every Tree built without an explicit Locker, so
// two trees over the same table in one process exclude each other.
var defaultLocker = NewProcessLocker()

func (l *ProcessLocker) Lock(ctx context.Context, name string) (func(), error) {
	slot, _ := l.slots.LoadOrCompute(name, func() chan struct{} {
		return make(chan struct{}, 1)
	})

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return func() { <-slot }, nil
}

// lockTable takes a postgres table lock inside tx. It conflicts with every
// other writer but not with plain readers, and is held until tx ends.
func lockTable(tx *gorm.DB, quotedTable string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}

	if err := tx.Exec(fmt.Sprintf("LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE", quotedTable)).Error; err != nil {
		return fmt.Errorf("locking table %s: %w", quotedTable, err)
	}
	return nil
}
