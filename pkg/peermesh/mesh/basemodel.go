// Package mesh computes BGP peering relationships and global BGP options for
// a device by executing declarative mesh rules against network topology.
//
// Rules match either globally (device only), directly (device plus a
// physically connected neighbor) or indirectly (device plus any device in the
// inventory). Each matching rule's handler populates option fragments;
// fragments from all matching rules for the same target are merged field by
// field under explicit per-field strategies, reconciled with physical
// connectivity, and converted to final bgp domain objects.
package mesh

// Opt is an optional fragment field. The zero value is absent; Set marks a
// field as populated. Merging distinguishes "not set" from "set to the zero
// value", which map-based or pointer-based encodings get wrong.
type Opt[T any] struct {
	val T
	set bool
}

// Set returns an Opt holding v.
func Set[T any](v T) Opt[T] {
	return Opt[T]{val: v, set: true}
}

// IsSet reports whether the field was populated.
func (o Opt[T]) IsSet() bool { return o.set }

// Value returns the held value, or the zero value if absent.
func (o Opt[T]) Value() T { return o.val }

// Or returns the held value, or def if absent.
func (o Opt[T]) Or(def T) T {
	if o.set {
		return o.val
	}
	return def
}

// Fragment is implemented by option records that merge field by field.
// Merge combines the receiver (lower precedence) with next (higher
// precedence) and returns the combined record.
type Fragment[T any] interface {
	Merge(next T) (T, error)
}

// Fold merges fragments left to right: the base first, then each element of
// rest in call order. Callers supply inputs in priority order, lowest to
// highest. Fold with no rest arguments returns base unchanged, which is how
// handler-populated contexts are materialized into fragment records.
func Fold[T Fragment[T]](base T, rest ...T) (T, error) {
	out := base
	var err error
	for _, next := range rest {
		out, err = out.Merge(next)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ============================================================================
// Per-field merge strategies
// ============================================================================

// useLast keeps the later value when both sides define the field. Used for
// fields where later, more specific rules win.
func useLast[T any](base, next Opt[T]) Opt[T] {
	if next.set {
		return next
	}
	return base
}

// mergeValue keeps whichever side defines the field; if both do and the
// values differ, the field cannot hold more than one value and the merge
// fails with a MergeConflictError naming the field.
func mergeValue[T comparable](base, next Opt[T], field string) (Opt[T], error) {
	if !base.set {
		return next, nil
	}
	if !next.set {
		return base, nil
	}
	if base.val != next.val {
		return Opt[T]{}, &MergeConflictError{Field: field, Left: base.val, Right: next.val}
	}
	return base, nil
}

// mergeList concatenates both contributions, base first. Order-sensitive.
func mergeList[T any](base, next []T) []T {
	if len(next) == 0 {
		return base
	}
	out := make([]T, 0, len(base)+len(next))
	out = append(out, base...)
	return append(out, next...)
}

// mergeSet unions both contributions preserving first-seen order.
func mergeSet(base, next []string) []string {
	if len(next) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base)+len(next))
	out := make([]string, 0, len(base)+len(next))
	for _, lists := range [][]string{base, next} {
		for _, v := range lists {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
