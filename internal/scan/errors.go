package scan

import "fmt"

// DataProcessingError is the single externally visible failure mode of a
// scan. Callers of the executor branch on this one type; the wrapped cause
// carries the detail.
type DataProcessingError struct {
	Msg string
	Err error
}

func (e *DataProcessingError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *DataProcessingError) Unwrap() error { return e.Err }

// processingErr wraps a cause with a message, tolerating a nil cause.
func processingErr(msg string, err error) *DataProcessingError {
	return &DataProcessingError{Msg: msg, Err: err}
}
