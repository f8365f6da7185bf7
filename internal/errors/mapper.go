package errors

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Map converts repo/infra errors into an *Error the HTTP layer can render.
// Errors that are already *Error pass through untouched.
func Map(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: "Resource not found", Err: err}

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Message: "Request timed out", Err: err}

	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindInternal, Message: "Request was canceled", Err: err}

	default:
		return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
	}
}

// NotFoundIfMissing turns gorm.ErrRecordNotFound into a NotFound with msg and
// leaves every other error alone.
func NotFoundIfMissing(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: msg, Err: err}
	}
	return err
}

// Duplicate maps a unique-constraint violation (gorm.ErrDuplicatedKey, which
// needs TranslateError on the gorm config) to the same DomainRule a pre-check
// would have produced.
func Duplicate(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindDomainRule, Message: msg, Err: err}
	}
	return err
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
