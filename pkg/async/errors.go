package async

import "fmt"

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
