package activation

import "fmt"

// Code classifies dispatch failures per the runtime error taxonomy.
type Code string

const (
	// CodeUnknownPath reports that an intermediate path segment did not
	// resolve to a child activation.
	CodeUnknownPath Code = "unknown_path"
	// CodeMethodNotFound reports that the owning activation exists but
	// does not declare the terminal method.
	CodeMethodNotFound Code = "method_not_found"
	// CodeInvalidParams reports that the parameter document failed
	// schema validation or could not be deserialized.
	CodeInvalidParams Code = "invalid_params"
	// CodeExecution reports an application-level handler failure.
	CodeExecution Code = "execution_error"
	// CodeCancelled reports observed cancellation.
	CodeCancelled Code = "cancelled"
	// CodeTimeout reports an expired request timer.
	CodeTimeout Code = "timeout"
	// CodeNotSupported reports a bidirectional request on a
	// unidirectional channel.
	CodeNotSupported Code = "not_supported"
	// CodeTypeMismatch reports a response payload whose discriminator
	// disagrees with the request kind.
	CodeTypeMismatch Code = "type_mismatch"
	// CodeTransport reports an underlying channel failure.
	CodeTransport Code = "transport"
)

// DispatchError is a classified dispatch failure. Transports map the code
// onto their wire error surface.
type DispatchError struct {
	Code    Code
	Message string
	// Err is the wrapped cause, when any.
	Err error
}

// Error implements error.
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *DispatchError) Unwrap() error { return e.Err }

// Errorf builds a DispatchError with a formatted message.
func Errorf(code Code, format string, args ...any) *DispatchError {
	return &DispatchError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a DispatchError around a cause.
func Wrap(code Code, err error, format string, args ...any) *DispatchError {
	return &DispatchError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}
