// Package apperr defines the business error kinds shared by the services and
// the transport layer.
package apperr

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrGenerationExhausted = errors.New("card number generation exhausted")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalid             = errors.New("invalid argument")
)

var kinds = []error{
	ErrNotFound,
	ErrConflict,
	ErrInsufficientFunds,
	ErrGenerationExhausted,
	ErrUnauthorized,
	ErrForbidden,
	ErrInvalid,
}

// Error is a business outcome carrying the entity it concerns.
// Message must never contain a full card number.
type Error struct {
	Kind    error
	Entity  string
	ID      string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, entity, id, msg string) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Message: msg}
}

// NotFound reports a missing entity or one the caller may not see.
func NotFound(entity, id, msg string) *Error {
	return newError(ErrNotFound, entity, id, msg)
}

// Conflict reports a state transition the current state does not allow.
func Conflict(entity, id, msg string) *Error {
	return newError(ErrConflict, entity, id, msg)
}

func InsufficientFunds(entity, id, msg string) *Error {
	return newError(ErrInsufficientFunds, entity, id, msg)
}

func GenerationExhausted(msg string) *Error {
	return newError(ErrGenerationExhausted, "card", "", msg)
}

func Unauthorized(msg string) *Error {
	return newError(ErrUnauthorized, "", "", msg)
}

func Forbidden(msg string) *Error {
	return newError(ErrForbidden, "", "", msg)
}

func Invalid(entity, msg string) *Error {
	return newError(ErrInvalid, entity, "", msg)
}

// KindOf returns the kind err belongs to, or nil for infrastructure errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code returns a stable machine-readable name for the kind of err.
func Code(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrGenerationExhausted:
		return "generation_exhausted"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrForbidden:
		return "forbidden"
	case ErrInvalid:
		return "invalid"
	default:
		return "internal"
	}
}
