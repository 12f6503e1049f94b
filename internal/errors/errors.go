// Package errors defines the structured error taxonomy for generation
// runs. Every error carries a kind, an optional field, and a reason;
// messages never embed raw provider output, so they are safe to forward
// to callers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error by its effect on the run.
type Kind string

const (
	// KindValidation, KindSystemLimit and KindConfig are fatal: the run
	// aborts, or returns a best-effort partial result. The rest are not
	// fatal; the run records the reason and continues with a fallback.
	KindValidation  Kind = "VALIDATION_ERROR"
	KindSystemLimit Kind = "SYSTEM_LIMIT_EXCEEDED"
	KindDegradation Kind = "DEGRADATION_EVENT"
	KindGuardrail   Kind = "GUARDRAIL_VIOLATION"
	KindConfig      Kind = "CONFIG_INVALID"
	KindExternal    Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal    Kind = "INTERNAL_ERROR"
)

// Error is the structured error every pipeline component surfaces.
type Error struct {
	Kind   Kind
	Field  string
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports a fatal request-shape or numeric-invariant breach.
func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason}
}

// Degradation records a non-fatal event; the run continues with a
// deterministic fallback.
func Degradation(reason string) *Error {
	return &Error{Kind: KindDegradation, Reason: reason}
}

// Guardrail records a non-fatal clamp-and-correct on one policy field.
func Guardrail(field, reason string) *Error {
	return &Error{Kind: KindGuardrail, Field: field, Reason: reason}
}

// SystemLimit reports a fatal run-level time or memory breach.
func SystemLimit(reason string) *Error {
	return &Error{Kind: KindSystemLimit, Reason: reason}
}

// ConfigInvalid reports an unusable environment configuration value.
func ConfigInvalid(reason string) *Error {
	return &Error{Kind: KindConfig, Reason: reason}
}

// External wraps a failed call to an external collaborator. The cause is
// retained for unwrapping but kept out of the message.
func External(service string, cause error) *Error {
	return &Error{Kind: KindExternal, Field: service, Reason: "call failed", cause: cause}
}

// KindOf returns err's kind, or KindInternal for a plain error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsFatal reports whether err aborts the run rather than continuing with
// a fallback.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindSystemLimit, KindConfig:
		return true
	}
	return false
}
