package errors

import (
	"fmt"
	"net/http"
)

// Kind classifies service failures so every transport maps them the same way.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindDomainRule
	KindUnauthenticated
)

// Error is the single error type services hand back to the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	// Fields is only set for KindValidation.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindDomainRule:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Validation wraps a field -> messages map.
func Validation(fields map[string][]string) error {
	return &Error{Kind: KindValidation, Message: "Validation error", Fields: fields}
}

// NotFound is returned for missing rows and for rows outside the caller's visibility.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Forbidden is returned when the caller is authenticated but not the owner or an admin.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// DomainRule carries a business-rule rejection whose message reaches the client verbatim.
func DomainRule(msg string) error {
	return &Error{Kind: KindDomainRule, Message: msg}
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}
