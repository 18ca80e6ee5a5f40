package tree

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound reports an id that is not present in the tree.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidFolderTarget reports a file used where a folder is required
	// for reading children.
	ErrInvalidFolderTarget = errors.New("invalid parent folder")
	// ErrInvalidParentTarget reports a file chosen as a move destination.
	ErrInvalidParentTarget = errors.New("invalid destination")
	// ErrCyclicMove reports a folder moved into itself or its own subtree.
	ErrCyclicMove = errors.New("destination is inside the moved entity")
	// ErrCycle reports a parent chain that never reaches the root.
	ErrCycle = errors.New("parent chain does not terminate")
)

// LookupError is returned when an operation indexes the tree with an id it
// does not contain.
type LookupError struct {
	Op  string
	ID  int
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: entity %d: %v", e.Op, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

func notFound(op string, id int) error {
	return &LookupError{Op: op, ID: id, Err: ErrNotFound}
}

// TargetError is returned when an entity cannot serve the role an operation
// asked of it. Title names the offending entity for display.
type TargetError struct {
	Op    string
	ID    int
	Title string
	Err   error
}

func (e *TargetError) Error() string {
	switch e.Err {
	case ErrInvalidParentTarget:
		return fmt.Sprintf("Attempt to select file %s as a destination", e.Title)
	case ErrInvalidFolderTarget:
		return fmt.Sprintf("Attempt to select file %s as a parent folder", e.Title)
	case ErrCyclicMove:
		return fmt.Sprintf("Attempt to move %s into its own subtree", e.Title)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Title, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }
