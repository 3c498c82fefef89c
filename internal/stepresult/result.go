// Package stepresult defines the typed outcome returned by generation-backed steps.
//
// A step either produces its value from generation (OK) or substitutes a
// deterministic fallback and reports why (Failed). Both carry a usable value,
// so callers never need to recover from a panic to keep a run alive.
package stepresult

// Source records where a step's value came from
type Source string

// Value sources
const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Result is a step's value plus the reason it fell back, if it did
type Result[T any] struct {
	Value  T
	Source Source
	Err    error
}

// OK wraps a generated value
func OK[T any](value T) Result[T] {
	return Result[T]{Value: value, Source: SourceGenerated}
}

// Failed wraps a fallback value together with the error that forced it
func Failed[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Source: SourceFallback, Err: err}
}

// UsedFallback reports whether the value is a fallback
func (r Result[T]) UsedFallback() bool {
	return r.Source == SourceFallback
}
