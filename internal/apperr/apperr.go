// Package apperr classifies ledger errors so transports can tell bad input,
// finalized months and unmet close preconditions apart.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition_failed"
	default:
		return "storage"
	}
}

// Error is a classified error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies of a sentinel compare equal to it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	ErrAlreadyClosed = &Error{Kind: KindConflict, Code: "already_closed", Message: "month is already closed"}
	ErrMonthLocked   = &Error{Kind: KindConflict, Code: "month_locked", Message: "month is locked"}
	ErrDuplicateMeal = &Error{Kind: KindConflict, Code: "duplicate_meal", Message: "meal already recorded for this date"}
	ErrZeroExpenses  = &Error{Kind: KindPrecondition, Code: "zero_expenses", Message: "month has no expenses to allocate"}
	ErrZeroMeals     = &Error{Kind: KindPrecondition, Code: "zero_meals", Message: "month has no meals to allocate against"}
	ErrInvalidMonth  = &Error{Kind: KindValidation, Code: "invalid_month", Message: "month must be in YYYY-MM format"}
	ErrForbidden     = &Error{Kind: KindForbidden, Code: "forbidden", Message: "not allowed"}
	ErrNotPending    = &Error{Kind: KindForbidden, Code: "deposit_not_pending", Message: "only pending deposits can be changed"}
)

// Validation builds a validation error for a malformed or missing field.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string) error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: entity + " not found"}
}

// Forbidden builds a permission error with a specific message.
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: message}
}

// Wrap attaches cause to a copy of sentinel, keeping its kind and code.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// Locked returns ErrMonthLocked annotated with the refused month.
func Locked(month string) error {
	return &Error{Kind: KindConflict, Code: ErrMonthLocked.Code, Message: fmt.Sprintf("month %s is locked", month)}
}

// KindOf classifies err. Unclassified errors are storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// CodeOf returns the machine-readable code of err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
