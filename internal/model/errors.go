package model

import (
	"errors"
	"fmt"
)

// Kind categorizes errors surfaced to callers.
//
// Kinds are string tags rather than distinct Go types so they can cross the
// gateway boundary (JSON) and the HTTP API unchanged.
type Kind string

// Savings domain.
const (
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindChallengeNotFound   Kind = "CHALLENGE_NOT_FOUND"
	KindNotParticipant      Kind = "NOT_PARTICIPANT"
	KindChallengeInactive   Kind = "CHALLENGE_INACTIVE"
	KindChallengeExpired    Kind = "CHALLENGE_EXPIRED"
	KindContractError       Kind = "CONTRACT_ERROR"
	KindNetworkError        Kind = "NETWORK_ERROR"
	KindValidationError     Kind = "VALIDATION_ERROR"
	KindUnauthorized        Kind = "UNAUTHORIZED"
)

// Cross-border domain.
const (
	KindPoolNotFound         Kind = "POOL_NOT_FOUND"
	KindPoolInactive         Kind = "POOL_INACTIVE"
	KindPositionLocked       Kind = "POSITION_LOCKED"
	KindMinDepositNotMet     Kind = "MIN_DEPOSIT_NOT_MET"
	KindMaxDepositExceeded   Kind = "MAX_DEPOSIT_EXCEEDED"
	KindUnsupportedCorridor  Kind = "UNSUPPORTED_CORRIDOR"
	KindExchangeRateNotFound Kind = "EXCHANGE_RATE_NOT_FOUND"
	KindMoneyGramError       Kind = "MONEYGRAM_ERROR"
	KindComplianceError      Kind = "COMPLIANCE_ERROR"
)

// Error is the structured error carried through every layer.
//
// Every error has a kind and a human message. Details and EntityID are
// optional context for diagnostics (e.g. the challenge id a contribution
// targeted).
type Error struct {
	Kind     Kind           `json:"kind"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	EntityID string         `json:"entity_id,omitempty"`

	// Err is the underlying cause, if any. Not serialized.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.EntityID != "" {
		msg = fmt.Sprintf("%s (entity=%s)", msg, e.EntityID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with the given kind.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithEntity sets the related entity id and returns the error for chaining.
func (e *Error) WithEntity(id string) *Error {
	e.EntityID = id
	return e
}

// WithDetail adds a detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validationf is shorthand for a VALIDATION_ERROR with a field detail.
func Validationf(field, format string, args ...any) *Error {
	return Errorf(KindValidationError, format, args...).WithDetail("field", field)
}

// KindOf extracts the kind from an error chain.
// Errors that are not *Error report an empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// AsError converts any error into an *Error. Errors that already carry a kind
// are returned as-is; anything else becomes a CONTRACT_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(KindContractError, "unexpected error", err)
}
