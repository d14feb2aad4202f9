package generic

import "fmt"

// Void is the value type of results that only carry an error.
type Void struct{}

func NewVoid() Void {
	return Void{}
}

type Result[T any] struct {
	Value T
	Error error
}

// NewResult wraps a (T, error) return value from another function call as a Result[T].
func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

// NewResult_ is like NewResult, but for return values that are just an error.
func NewResult_(err error) Result[Void] {
	return NewResult(NewVoid(), err)
}

// Expect returns the contained value if IsOk(), or panics with the supplied error message and the contained error.
func (r Result[T]) Expect(msg string) T {
	if r.IsOk() {
		return r.Value
	} else {
		panic(fmt.Errorf("%s: %w", msg, r.Error))
	}
}

// IsOk returns true if the Result[T] contains a value.
func (r Result[T]) IsOk() bool {
	return r.Error == nil
}

// Unwrap returns the contained value, or panics if there is an error.
func (r Result[T]) Unwrap() T {
	return r.Expect("tried to Unwrap() an Err")
}

// Unwrap is a shortcut for NewResult(...).Unwrap().
func Unwrap[T any](value T, err error) T {
	return NewResult(value, err).Unwrap()
}

// Unwrap_ is like Unwrap, but for return values that are just an error.
func Unwrap_(err error) {
	NewResult_(err).Unwrap()
}
