package usecase

import (
	"errors"
	"fmt"

	"github.com/xavierca1/leadforge/internal/entity"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// DomainError is a failure the caller can act on; it is never retried.
type DomainError struct {
	Code    string
	Message string
	Fields  []ValidationError
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError wraps infrastructure failures (database, queue, providers).
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error { return e.Err }

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func notFound(what string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: what + " not found"}
}

func forbidden(what string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: what + " belongs to another user"}
}

func invalidTransition(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func validationFailed(errs []ValidationError) *DomainError {
	msg := "validation failed: "
	for i, e := range errs {
		if i > 0 {
			msg += ", "
		}
		msg += e.Field + " (" + e.Message + ")"
	}
	return &DomainError{Code: CodeValidation, Message: msg, Fields: errs}
}

func invalidField(field, message string) *DomainError {
	return validationFailed([]ValidationError{{Field: field, Message: message}})
}

func technical(message string, err error) *TechnicalError {
	return &TechnicalError{Code: CodeInternal, Message: message, Err: err}
}

func unavailable(message string, err error) *TechnicalError {
	return &TechnicalError{Code: CodeUnavailable, Message: message, Err: err}
}

// fromRepo translates repository sentinels into domain errors.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, entity.ErrNotFound):
		return notFound(what)
	case errors.Is(err, entity.ErrConflict):
		return conflict("%s already exists", what)
	case errors.Is(err, entity.ErrReferenced):
		return conflict("%s is still referenced", what)
	case errors.Is(err, entity.ErrStaleState):
		return invalidTransition("%s changed state concurrently", what)
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return technical("failed to access "+what, err)
}
