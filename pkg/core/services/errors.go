package services

import (
	"errors"
	"fmt"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// ErrorKind classifies a ServiceError; the API layer maps it to an HTTP status
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindConflict   ErrorKind = "CONFLICT"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindForbidden  ErrorKind = "FORBIDDEN"
	KindInternal   ErrorKind = "INTERNAL"
)

// ServiceError is the error type returned by every operation in this package.
// Bulk operations put the offending identifiers in Details.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(kind ErrorKind, code, message string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message, Cause: cause}
}

func (e *ServiceError) with(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func validationError(code, message string) *ServiceError {
	return newServiceError(KindValidation, code, message, nil)
}

func notFound(code, message string) *ServiceError {
	return newServiceError(KindNotFound, code, message, nil)
}

func internalError(message string, cause error) *ServiceError {
	return newServiceError(KindInternal, "INTERNAL", message, cause)
}

// KindOf returns the kind of a ServiceError anywhere in err's chain, or KindInternal
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// AsServiceError unwraps err into a ServiceError, wrapping unknown errors as internal
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return internalError("internal error", err)
}

// mapStoreError translates store errors into service errors. Constraint names pick the code.
func mapStoreError(err error, message string) error {
	if err == nil {
		return nil
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	if errors.Is(err, db.ErrNotFound) {
		return newServiceError(KindNotFound, "NOT_FOUND", message, err)
	}

	var ce *db.ConstraintError
	if !errors.As(err, &ce) {
		return internalError(message, err)
	}

	switch ce.Kind {
	case db.UniqueViolation:
		recordWriteConflict("unique")
		switch ce.Constraint {
		case db.ConstraintPositionNumber:
			return newServiceError(KindConflict, "POSITION_NUMBER_CONFLICT", "position number already exists", err)
		case db.ConstraintSessionName:
			return newServiceError(KindConflict, "COUNT_SESSION_NAME_CONFLICT", "count session name already exists", err)
		case db.ConstraintTemplateName:
			return newServiceError(KindConflict, "TEMPLATE_NAME_CONFLICT", "template name already exists", err)
		default:
			return newServiceError(KindConflict, "CONFLICT", "unique constraint violated", err)
		}
	case db.ForeignKeyViolation:
		recordWriteConflict("foreign_key")
		return newServiceError(KindNotFound, "REFERENCE_NOT_FOUND", "referenced record not found", err)
	default:
		return internalError(message, err)
	}
}
