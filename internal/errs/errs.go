// Package errs defines the failure categories every call can abort with.
// A failed call never leaves partial state behind; these errors only describe
// why it was rejected.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category of a rejected call.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindSystemPaused
	KindInvalidState
	KindDuplicateAction
	KindValueMismatch
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindSystemPaused:
		return "system_paused"
	case KindInvalidState:
		return "invalid_state"
	case KindDuplicateAction:
		return "duplicate_action"
	case KindValueMismatch:
		return "value_mismatch"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a categorized call failure. Two errors match under errors.Is when
// they share a Code, so detail added with With does not break comparisons.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of the sentinel carrying a formatted detail message.
func (e *Error) With(format string, args ...interface{}) *Error {
	return &Error{
		Kind:   e.Kind,
		Code:   e.Code,
		Detail: fmt.Sprintf(format, args...),
	}
}

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// KindOf returns the category of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	// Unauthorized
	ErrUnauthorized        = newError(KindUnauthorized, "Unauthorized")
	ErrCallerNotAuthorized = newError(KindUnauthorized, "CallerNotAuthorized")
	ErrIndexMismatch       = newError(KindUnauthorized, "IndexMismatch")

	// SystemPaused
	ErrSystemPaused = newError(KindSystemPaused, "SystemPaused")

	// InvalidState
	ErrCallerNotFunded    = newError(KindInvalidState, "CallerNotFunded")
	ErrNotRegistered      = newError(KindInvalidState, "NotRegistered")
	ErrAlreadyRegistered  = newError(KindInvalidState, "AlreadyRegistered")
	ErrAlreadyFunded      = newError(KindInvalidState, "AlreadyFunded")
	ErrStatusFinalized    = newError(KindInvalidState, "StatusFinalized")
	ErrNoCredit           = newError(KindInvalidState, "NoCredit")
	ErrInsufficientPool   = newError(KindInvalidState, "InsufficientPool")
	ErrTransferFailed     = newError(KindInvalidState, "TransferFailed")
	ErrInvalidStatusCode  = newError(KindInvalidState, "InvalidStatusCode")
	ErrInvalidCallPayload = newError(KindInvalidState, "InvalidCallPayload")

	// DuplicateAction
	ErrDuplicateVote     = newError(KindDuplicateAction, "DuplicateVote")
	ErrDuplicatePurchase = newError(KindDuplicateAction, "DuplicatePurchase")
	ErrDuplicateResponse = newError(KindDuplicateAction, "DuplicateResponse")
	ErrDuplicateFlight   = newError(KindDuplicateAction, "DuplicateFlight")
	ErrDuplicateOracle   = newError(KindDuplicateAction, "DuplicateOracle")

	// ValueMismatch
	ErrInsufficientFunding = newError(KindValueMismatch, "InsufficientFunding")
	ErrPremiumMismatch     = newError(KindValueMismatch, "PremiumMismatch")
	ErrInsufficientFee     = newError(KindValueMismatch, "InsufficientFee")
	ErrUnexpectedValue     = newError(KindValueMismatch, "UnexpectedValue")

	// NotFound
	ErrUnknownFlight  = newError(KindNotFound, "UnknownFlight")
	ErrUnknownRequest = newError(KindNotFound, "UnknownRequest")
	ErrUnknownOracle  = newError(KindNotFound, "UnknownOracle")
)
