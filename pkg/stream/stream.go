// Package stream provides small combinators over iter.Seq2[T, error],
// the pull-driven record stream shape used by the extractors. Errors travel
// in-band so a failing source terminates its own stream without tearing down
// the streams concatenated after it.
package stream

import "iter"

// Of returns a stream yielding the given items in order.
func Of[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Error returns a stream yielding a single error element.
func Error[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// Concat lazily chains streams end to end, preserving order. A stream is not
// touched until every element of the streams before it has been consumed.
func Concat[T any](seqs ...iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, seq := range seqs {
			for item, err := range seq {
				if !yield(item, err) {
					return
				}
			}
		}
	}
}

// Map transforms each value of a stream. Error elements pass through with the
// zero value of the target type.
func Map[S, T any](seq iter.Seq2[S, error], fn func(S) T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				var zero T
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(fn(item), nil) {
				return
			}
		}
	}
}

// Collect drains a stream into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
