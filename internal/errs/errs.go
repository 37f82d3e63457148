// Package errs defines the reader service's error-kind taxonomy and the
// envelope used for non-streaming HTTP error responses.
package errs

import "fmt"

// Kind is a stable, client-visible error classification. It is not a Go
// type — callers switch on it to decide HTTP status codes and retry policy.
type Kind string

const (
	InvalidArgument        Kind = "InvalidArgument"
	Unauthenticated         Kind = "Unauthenticated"
	InsufficientBalance     Kind = "InsufficientBalance"
	RateLimited             Kind = "RateLimited"
	UpstreamBrowserFailure  Kind = "UpstreamBrowserFailure"
	UpstreamModelFailure    Kind = "UpstreamModelFailure"
	StorageFailure          Kind = "StorageFailure"
	Internal                Kind = "Internal"
)

// Error is a typed error carrying a client-visible Kind and message, with an
// optional wrapped cause for internal logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause, using cause's message if message is empty.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Envelope is the non-streaming error response body: {code, message}.
type Envelope struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// ToEnvelope converts any error into a response Envelope. Errors that are
// not *Error are classified Internal.
func ToEnvelope(err error) Envelope {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		e = &Error{Kind: Internal, Message: err.Error()}
	}
	return Envelope{Code: e.Kind, Message: e.Message}
}

// HTTPStatus maps a Kind to the conventional HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case InvalidArgument:
		return 400
	case Unauthenticated:
		return 401
	case InsufficientBalance:
		return 402
	case RateLimited:
		return 429
	case UpstreamBrowserFailure, UpstreamModelFailure, StorageFailure:
		return 502
	default:
		return 500
	}
}
