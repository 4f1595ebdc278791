package bootstrap

import (
	"errors"
	"fmt"
)

// Kind classifies a bootstrap failure.
type Kind int

const (
	// ArgumentValidation is bad or inconsistent operator input.
	ArgumentValidation Kind = iota + 1
	// ResourceResolution means tokenizer resolution exhausted every fallback.
	ResourceResolution
	// BackendConnection means the backend handshake or construction failed.
	BackendConnection
	// ServerFailure is an error returned by the server after startup.
	ServerFailure
)

func (k Kind) String() string {
	switch k {
	case ArgumentValidation:
		return "argument_validation"
	case ResourceResolution:
		return "resource_resolution"
	case BackendConnection:
		return "backend_connection"
	case ServerFailure:
		return "server_failure"
	default:
		return "unknown"
	}
}

func (k Kind) prefix() string {
	switch k {
	case ArgumentValidation:
		return "Argument validation error"
	case ResourceResolution:
		return "Tokenizer resolution failed"
	case BackendConnection:
		return "Backend failed"
	case ServerFailure:
		return "WebServer error"
	default:
		return "Bootstrap error"
	}
}

// Error is a classified bootstrap failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return e.Kind.prefix() + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, err error) *Error { return &Error{Kind: k, Err: err} }

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: ArgumentValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// IsArgumentValidation reports whether err is an operator input error.
func IsArgumentValidation(err error) bool { return KindOf(err) == ArgumentValidation }

// IsResourceResolution reports whether err is a tokenizer resolution failure.
func IsResourceResolution(err error) bool { return KindOf(err) == ResourceResolution }

// IsBackendConnection reports whether err is a backend connection failure.
func IsBackendConnection(err error) bool { return KindOf(err) == BackendConnection }

// IsServerFailure reports whether err came from the server.
func IsServerFailure(err error) bool { return KindOf(err) == ServerFailure }
