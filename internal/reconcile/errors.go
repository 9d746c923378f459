package reconcile

import "errors"

// Failure kinds. Match them with errors.Is.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPaymentIncomplete = errors.New("payment incomplete")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
)

// Error carries a failure kind, a message that is safe to show the caller and
// the underlying cause, which is only for logs.
type Error struct {
	Kind    error
	Message string
	Cause   error

	// PaymentStatus is set for ErrPaymentIncomplete.
	PaymentStatus string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.Error() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

func fail(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
