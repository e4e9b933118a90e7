// Package errs carries the error kinds the domain packages return and the
// HTTP layer maps to status codes. Errors wrap normally; KindOf walks the
// chain so callers can use errors.Is/As alongside it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	// Internal is the zero kind for unexpected failures.
	Internal Kind = iota
	// InvalidArgument rejects malformed or out-of-bounds input.
	InvalidArgument
	// NotFound reports a missing or invisible entity.
	NotFound
	// Conflict reports a state-machine violation or duplicate.
	Conflict
	// Forbidden reports an authorization failure.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a kinded error. Use E to construct and KindOf to classify.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded error with a formatted message.
func E(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(k Kind, err error, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, walking wrapped chains. Unknown errors
// report Internal; a nil error also reports Internal, so check err != nil
// first.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries kind k anywhere in its chain.
func IsKind(err error, k Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == k
}
