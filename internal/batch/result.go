// Package batch carries per-unit outcomes across pipeline stages. A failure
// in one unit never aborts processing of sibling units; callers collect both
// sides and surface aggregate counts plus the failure manifest.
package batch

import "fmt"

// Failure records one unit (a file, a row, a cache key) that could not be
// processed, with enough context for manual remediation.
type Failure struct {
	Unit   string `json:"unit"`
	Reason string `json:"reason"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Unit, f.Reason)
}

// Result aggregates the successes and failures of one batch.
// Invariant: Processed() == len(input units).
type Result[T any] struct {
	Successes []T       `json:"successes"`
	Failures  []Failure `json:"failures"`
}

func (r *Result[T]) AddSuccess(v T) {
	r.Successes = append(r.Successes, v)
}

func (r *Result[T]) AddFailure(unit, format string, args ...any) {
	r.Failures = append(r.Failures, Failure{Unit: unit, Reason: fmt.Sprintf(format, args...)})
}

func (r *Result[T]) Processed() int {
	return len(r.Successes) + len(r.Failures)
}

// Merge folds another result into this one, preserving order.
func (r *Result[T]) Merge(other Result[T]) {
	r.Successes = append(r.Successes, other.Successes...)
	r.Failures = append(r.Failures, other.Failures...)
}
