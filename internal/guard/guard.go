package guard

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a value recovered from a panicking function.
type PanicError struct {
	Value any
	Stack []byte
}

// Error ...
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Run calls fn and returns its error. A panic raised by fn is recovered and
// returned as a *PanicError instead of unwinding the calling goroutine.
func Run(fn func() error) error {
	_, err := Value(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value calls fn and returns its results. A panic raised by fn is recovered
// and returned as a *PanicError together with the zero value of T.
func Value[T any](fn func() (T, error)) (value T, err error) {
	if fn == nil {
		return value, nil
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
