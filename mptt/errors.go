package mptt

import (
	"errors"
	"fmt"
)

// ErrRejected is wrapped by every outcome the engine refuses by design. These
// leave the table untouched and are not storage failures; test for them with
// IsRejected.
var ErrRejected = errors.New("rejected")

var (
	ErrAlreadyInTree  = fmt.Errorf("%w: node is already in the tree, use a move", ErrRejected)
	ErrNotInTree      = fmt.Errorf("%w: node is not in the tree", ErrRejected)
	ErrTargetNotFound = fmt.Errorf("%w: target node not found", ErrRejected)
	ErrScopeExists    = fmt.Errorf("%w: scope already has a root", ErrRejected)
	ErrInvalidMove    = fmt.Errorf("%w: target is the node itself, one of its descendants or a disallowed root", ErrRejected)
	ErrRootSibling    = fmt.Errorf("%w: a scope root cannot have siblings", ErrRejected)
	ErrNotRoot        = fmt.Errorf("%w: node is not a scope root", ErrRejected)
	ErrDirectCreate   = fmt.Errorf("%w: tree nodes cannot be created directly, use an insert method", ErrRejected)
	ErrDirectUpdate   = fmt.Errorf("%w: tree columns cannot be updated directly, use a move method", ErrRejected)
)

// Configuration errors, detected eagerly.
var (
	ErrCompositeKey = errors.New("mptt: composite primary keys are not supported")
	ErrNotTreeModel = errors.New("mptt: model does not carry the nested set columns")
	ErrUnsupported  = errors.New("mptt: unsupported operation")
)

// IsRejected reports whether err is a by-design refusal rather than a
// validation or storage failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Names of the checks run by VerifyScope.
const (
	CheckRoot      = "root"
	CheckBounds    = "bounds"
	CheckInverted  = "inverted"
	CheckParity    = "parity"
	CheckDuplicate = "duplicate"
	CheckCount     = "count"
	CheckOverlap   = "overlap"
	CheckLevel     = "level"
)

// IntegrityError describes the first violated invariant found in a scope.
type IntegrityError struct {
	Table  string
	Scope  int
	Check  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("mptt: %s scope %d failed %s check: %s", e.Table, e.Scope, e.Check, e.Detail)
}
