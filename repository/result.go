package repository

import "github.com/axonops/cqlmapper/keys"

// Result is either a value or a key validation failure. Failures are expected,
// recoverable outcomes and are never returned through the error channel.
type Result[V any] struct {
	Value   V
	Failure *keys.Failure
}

// OK reports whether the call passed key validation
func (r Result[V]) OK() bool {
	return r.Failure == nil
}

func failed[V any](f *keys.Failure) Result[V] {
	return Result[V]{Failure: f}
}

func succeeded[V any](v V) Result[V] {
	return Result[V]{Value: v}
}
