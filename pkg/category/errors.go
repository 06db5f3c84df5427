package category

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is matched by every CycleError.
	ErrCycle = errors.New("category move would create a cycle")
	// ErrNotEmpty is matched by every NotEmptyError.
	ErrNotEmpty = errors.New("category is not empty")
	// ErrCorruptHierarchy is returned when stored parent references already
	// contain a loop.
	ErrCorruptHierarchy = errors.New("category hierarchy contains a cycle")
	// ErrInvalidCategory is returned for categories without a name.
	ErrInvalidCategory = errors.New("category name is required")
)

// CycleError reports a refused move of ID below Parent.
type CycleError struct {
	ID     uint
	Parent uint
}

func (e *CycleError) Error() string {
	if e.ID == e.Parent {
		return fmt.Sprintf("category %d cannot be its own parent", e.ID)
	}
	return fmt.Sprintf("category %d is an ancestor of %d", e.ID, e.Parent)
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// NotEmptyError reports a refused delete together with the blocking counts.
type NotEmptyError struct {
	ID       uint
	Entries  int64
	Children int64
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("category %d still has %d entries and %d subcategories", e.ID, e.Entries, e.Children)
}

func (e *NotEmptyError) Is(target error) bool {
	return target == ErrNotEmpty
}
