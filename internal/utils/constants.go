package utils

// Application Constants
const (
	AppName    = "RideMate"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 50
	MaxPageSize     = 200
	MinPageSize     = 1
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Error codes that are not service error kinds
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)
