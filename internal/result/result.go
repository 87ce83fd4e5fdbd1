// Package result provides Result, a success-or-failure value used by the
// service layer to report outcomes without returning bare errors across the
// service/handler boundary.
//
// A Result is built with exactly one of Success or Fail and is read only
// through Match, which forces the caller to handle both variants.
package result

import "fmt"

// Kind classifies a failure so callers can branch on it without comparing
// message text.
type Kind int

const (
	// KindNotFound means the requested record does not exist.
	KindNotFound Kind = iota + 1
	// KindUnauthorized means the record exists but belongs to someone else.
	KindUnauthorized
	// KindValidation means the input or the write was rejected.
	KindValidation
	// KindUnavailable means the backing store failed.
	KindUnavailable
)

// String returns a stable, lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Failure is the payload of a failed Result.
type Failure struct {
	Kind    Kind
	Message string
}

// Error implements error so a Failure can be logged or wrapped directly.
func (f Failure) Error() string { return f.Message }

// Result holds either a value of type T or a Failure. The zero value is not
// a valid Result; use Success or Fail.
type Result[T any] struct {
	value   T
	failure Failure
	ok      bool
}

// Success returns a Result holding v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail returns a failed Result with the given kind and message.
func Fail[T any](kind Kind, msg string) Result[T] {
	return Result[T]{failure: Failure{Kind: kind, Message: msg}}
}

// Failf is Fail with fmt.Sprintf formatting.
func Failf[T any](kind Kind, format string, args ...any) Result[T] {
	return Fail[T](kind, fmt.Sprintf(format, args...))
}

// Match calls onSuccess or onFailure depending on the variant held by r.
func (r Result[T]) Match(onSuccess func(T), onFailure func(Failure)) {
	if r.ok {
		onSuccess(r.value)
		return
	}
	onFailure(r.failure)
}

// Match dispatches r to onSuccess or onFailure and returns what the chosen
// branch returns.
func Match[T, R any](r Result[T], onSuccess func(T) R, onFailure func(Failure) R) R {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(r.failure)
}

// Then runs next with the value of r when r is a success. A failed r is
// passed through as a Result[U] with its kind and message unchanged.
func Then[T, U any](r Result[T], next func(T) Result[U]) Result[U] {
	if r.ok {
		return next(r.value)
	}
	return Result[U]{failure: r.failure}
}
