// Package errs defines the error taxonomy shared by the gate, the governance
// registry and the HTTP layer. Every error carries a kind which maps to a
// JSON-RPC code and an HTTP status.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindInvalidOption
	KindDuplicateVote
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindMethodNotFound
	KindUpstream
)

// JSON-RPC codes used on the wire.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeNotFound       = -32001
	CodeInvalidState   = -32002
	CodeDuplicateVote  = -32003
	CodeRateLimited    = -32005
	CodePolicy         = -1
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidOption:
		return "invalid_option"
	case KindDuplicateVote:
		return "duplicate_vote"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindMethodNotFound:
		return "method_not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is the single error type of the taxonomy.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, so errors.Is(err, ErrNotFound) holds for any
// not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
	ErrInvalidOption  = &Error{Kind: KindInvalidOption}
	ErrDuplicateVote  = &Error{Kind: KindDuplicateVote}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
	ErrMethodNotFound = &Error{Kind: KindMethodNotFound}
	ErrUpstream       = &Error{Kind: KindUpstream}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: defaultCode(kind), Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return newf(KindInvalidState, format, args...)
}

func InvalidOption(format string, args ...interface{}) error {
	return newf(KindInvalidOption, format, args...)
}

func DuplicateVote(format string, args ...interface{}) error {
	return newf(KindDuplicateVote, format, args...)
}

func Unauthorized() error {
	return newf(KindUnauthorized, "Unauthorized")
}

func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

func RateLimited() error {
	return newf(KindRateLimited, "Rate limit exceeded")
}

func MethodNotFound(method string) error {
	return newf(KindMethodNotFound, "Method not found: %s", method)
}

// Upstream preserves the daemon's own error code and message.
func Upstream(code int, message string) error {
	if code == 0 {
		code = CodeInternal
	}
	return &Error{Kind: KindUpstream, Code: code, Message: message}
}

// Transport wraps a failure to reach the daemon at all.
func Transport(err error) error {
	return &Error{Kind: KindUpstream, Code: CodeInternal, Message: err.Error(), Err: err}
}

func defaultCode(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidOption:
		return CodeInvalidParams
	case KindNotFound:
		return CodeNotFound
	case KindInvalidState:
		return CodeInvalidState
	case KindDuplicateVote:
		return CodeDuplicateVote
	case KindRateLimited:
		return CodeRateLimited
	case KindUnauthorized, KindForbidden:
		return CodePolicy
	case KindMethodNotFound:
		return CodeMethodNotFound
	default:
		return CodeInternal
	}
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the JSON-RPC error code for err.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != 0 {
			return e.Code
		}
		return defaultCode(e.Kind)
	}
	return CodeInternal
}

// HTTPStatus maps err to the status code used by the REST and RPC handlers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidOption:
		return http.StatusBadRequest
	case KindNotFound, KindMethodNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindDuplicateVote:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
