package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

// ServiceError carries a caller-facing error class. Details lists offending
// fields or question ids when a validation spans several inputs.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Details []string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func newInvalidDetails(msg string, details []string) error {
	return &ServiceError{Code: ErrorInvalid, Message: msg, Details: details}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

var (
	// ErrFormSubmitted rejects edits to an answer set that was already submitted.
	ErrFormSubmitted = &ServiceError{Code: ErrorInvalid, Message: "form already submitted"}
	// ErrEmailExists is returned by stores when a user with the same email exists.
	ErrEmailExists = &ServiceError{Code: ErrorConflict, Message: "email already registered"}
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = &ServiceError{Code: ErrorUnauthorized, Message: "invalid credentials"}
	// ErrSessionNotFound is returned for unknown or revoked sessions.
	ErrSessionNotFound = &ServiceError{Code: ErrorUnauthorized, Message: "session not found"}
)
