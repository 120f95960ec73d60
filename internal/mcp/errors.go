package mcp

import "fmt"

// TransportError is a failure talking to the remote tool server. Its
// message is safe to show to the end user, so callers surface it
// verbatim instead of genericizing it.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	return e.Msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErrorf(err error, format string, args ...any) *TransportError {
	return &TransportError{Msg: fmt.Sprintf(format, args...), Err: err}
}
