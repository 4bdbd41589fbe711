package mesh

import (
	"errors"
	"fmt"
)

// Sentinel errors raised during mesh execution. All are fatal to the current
// device's execution and never retried; other devices in a batch are not
// affected.
var (
	// ErrMergeConflict: two or more rule handlers asserted incompatible
	// values for a single-valued field.
	ErrMergeConflict = errors.New("mesh merge conflict")

	// ErrConflictingInterfaceMode: LAG and SVI, or SVI and subif, both
	// requested for the same relationship.
	ErrConflictingInterfaceMode = errors.New("conflicting interface mode")

	// ErrAmbiguousMultiLink: more than one physical connection between two
	// devices with no LAG or SVI selection to disambiguate.
	ErrAmbiguousMultiLink = errors.New("ambiguous multi-link connection")
)

// MergeConflictError reports the field and the two incompatible values.
type MergeConflictError struct {
	Field string
	Left  interface{}
	Right interface{}
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on field '%s': %v vs %v", e.Field, e.Left, e.Right)
}

func (e *MergeConflictError) Unwrap() error {
	return ErrMergeConflict
}
