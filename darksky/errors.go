package darksky

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the library can report.
type ErrorKind int

const (
	KindInvalidURI ErrorKind = iota + 1 // Assembled request URL does not parse
	KindFormat                          // A value could not be rendered into the URL
	KindTransport                       // HTTP request failed or returned a non-2xx status
	KindDecode                          // Body is not a valid forecast document
	KindIO                              // Reading the response body failed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURI:
		return "invalid uri"
	case KindFormat:
		return "format"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrInvalidURI = &Error{Kind: KindInvalidURI}
	ErrFormat     = &Error{Kind: KindFormat}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrDecode     = &Error{Kind: KindDecode}
	ErrIO         = &Error{Kind: KindIO}
)

// Error is the single result error type returned by the library.
type Error struct {
	Kind ErrorKind
	Op   string // Operation that failed, e.g. "format url"
	Err  error  // Underlying cause
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("darksky: %s error during %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("darksky: %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("darksky: %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// DecodeError reports a payload that does not match the forecast schema:
// a value of the wrong JSON type, an unrecognized enum token or a missing
// required field. Value holds the offending raw JSON when there is one.
type DecodeError struct {
	Description string
	Field       string
	Value       json.RawMessage
}

func (e *DecodeError) Error() string {
	msg := e.Description
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if len(e.Value) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, string(e.Value))
	}
	return msg
}

// APIError represents a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// ValidationError represents a validation error for input parameters
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NetworkError represents a network-related error
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsDecode reports whether err is a decode failure.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsTransport reports whether err is a transport failure, including non-2xx statuses.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
