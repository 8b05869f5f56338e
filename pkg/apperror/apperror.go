// Package apperror classifies domain failures into a small set of kinds that
// callers can branch on without matching individual sentinel errors.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindProviderError     Kind = "provider_error"
	KindInvalidInput      Kind = "invalid_input"
	KindForbidden         Kind = "forbidden"
)

// Error is a classified domain error. Code is a stable snake_case identifier.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code
	if e.Message != "" {
		msg = e.Code + ": " + e.Message
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error with the same kind and code, so sentinels created
// with New remain comparable after WithMessage copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New creates a sentinel error of the given kind.
func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// WithMessage returns a copy of e carrying a human readable detail.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e with err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// Provider classifies a collaborator failure. Already classified provider
// errors are returned unchanged.
func Provider(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindProviderError {
		return err
	}
	return &Error{Kind: KindProviderError, Code: "provider_error", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsRateLimited(err error) bool       { return KindOf(err) == KindRateLimited }
func IsInsufficientFunds(err error) bool { return KindOf(err) == KindInsufficientFunds }
func IsProviderError(err error) bool     { return KindOf(err) == KindProviderError }
func IsInvalidInput(err error) bool      { return KindOf(err) == KindInvalidInput }
func IsForbidden(err error) bool         { return KindOf(err) == KindForbidden }
