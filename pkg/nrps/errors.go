package nrps

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	ErrorKindNotFound                  ErrorKind = "NOT_FOUND"
	ErrorKindMalformedPayload          ErrorKind = "MALFORMED_PAYLOAD"
	ErrorKindMembershipRetrievalFailed ErrorKind = "MEMBERSHIP_RETRIEVAL_FAILED"
)

// Error is the single error type raised by the NRPS model, client and
// serializer. Cause holds the underlying failure when there is one.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an error of the given kind around cause. The cause message
// is appended to the formatted message.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}
