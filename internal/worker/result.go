package worker

import "reflect"

// Outcome is the three-way shape of an operation result.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEmpty
	OutcomeErr
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeErr:
		return "err"
	default:
		return "unknown"
	}
}

// Result carries either a value, nothing, or an error.
type Result[T any] struct {
	Value   T
	Err     error
	Outcome Outcome
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeOK}
}

func Empty[T any]() Result[T] {
	return Result[T]{Outcome: OutcomeEmpty}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err, Outcome: OutcomeErr}
}

// From folds a (value, error) pair into a Result. Nil pointers, nil or empty
// slices and maps become OutcomeEmpty.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	if isEmpty(v) {
		return Empty[T]()
	}
	return OK(v)
}

func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
