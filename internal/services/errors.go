package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindAuthorization ErrorKind = "AUTHORIZATION_ERROR"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindCapacity      ErrorKind = "CAPACITY"
	KindConflict      ErrorKind = "CONFLICT"
)

// Sentinels for errors.Is. They match any AppError of the same kind.
var (
	ErrValidation    = &AppError{Kind: KindValidation}
	ErrAuthorization = &AppError{Kind: KindAuthorization}
	ErrNotFound      = &AppError{Kind: KindNotFound}
	ErrCapacity      = &AppError{Kind: KindCapacity}
	ErrConflict      = &AppError{Kind: KindConflict}
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// PublicMessage is the text safe to show to API clients.
func (e *AppError) PublicMessage() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Details: details}
}

func NewAuthorizationError(message string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NewCapacityError(message string) *AppError {
	return &AppError{Kind: KindCapacity, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// AsAppError extracts the AppError carried by err, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
