package intercept

// Result is the outcome of one interception step: either a value or the
// error that stopped the chain. Failures carry the reason a real function
// could not be reached (an unresolved symbol) or the error it returned.
type Result[T any] struct {
	value T
	err   error
}

// Value returns a successful Result holding v.
func Value[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail returns a failed Result carrying err.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Ok reports whether the result holds a value.
func (r Result[T]) Ok() bool {
	return r.err == nil
}

// Get returns the held value and the failure reason. Exactly one of the
// two is meaningful.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Err returns the failure reason, nil for a successful result.
func (r Result[T]) Err() error {
	return r.err
}

// Map feeds the value of r into f, producing the next step's Result. A
// failed r short-circuits: f is not invoked and the failure comes out
// unchanged.
func Map[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Fail[U](r.err)
	}
	return f(r.value)
}
