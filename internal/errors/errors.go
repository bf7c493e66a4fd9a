package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypePermissionDenied ErrorType = "permission_denied"
	ErrorTypeCaptureFailure   ErrorType = "capture_failure"
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeServer           ErrorType = "server"
	ErrorTypeRequestSetup     ErrorType = "request_setup"
	ErrorTypeStorageCorrupt   ErrorType = "storage_corrupt"
	ErrorTypeShareChannel     ErrorType = "share_channel"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeInternal         ErrorType = "internal"
)

// Pipeline control errors. They are wrapped in a conflict AppError at the
// transport boundary.
var (
	ErrBusy              = errors.New("a scan is already in progress")
	ErrCancelRefused     = errors.New("cancellation refused once processing has started")
	ErrInvalidTransition = errors.New("action not allowed in current state")
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	// Status is the upstream HTTP status for server errors.
	Status int   `json:"status,omitempty"`
	Cause  error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewPermissionDeniedError is returned when camera or gallery access is refused
func NewPermissionDeniedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypePermissionDenied,
		Message:    message,
		StatusCode: http.StatusForbidden,
		Cause:      cause,
	}
}

// NewCaptureError creates a new camera/gallery acquisition error
func NewCaptureError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCaptureFailure,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewServerError records a non-2xx answer from the summary backend
func NewServerError(status int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeServer,
		Message:    fmt.Sprintf("Server error: %d", status),
		StatusCode: http.StatusBadGateway,
		Status:     status,
		Cause:      cause,
	}
}

// NewRequestSetupError creates an error for failures before a request is sent
func NewRequestSetupError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRequestSetup,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewStorageCorruptError describes unreadable persisted data. It is only logged.
func NewStorageCorruptError(key string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStorageCorrupt,
		Message:    "persisted record is unreadable",
		Details:    key,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewShareChannelError creates an error for a single failed share channel
func NewShareChannelError(channel string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeShareChannel,
		Message:    "failed to share summary",
		Details:    channel,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewConflictError wraps pipeline control errors
func NewConflictError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Cause:      cause,
	}
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// UserMessage is the text shown to the user for a failed run.
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch appErr.Type {
	case ErrorTypePermissionDenied:
		return "Camera or gallery permission is required to scan a report."
	case ErrorTypeCaptureFailure:
		return "Failed to capture image. Please retake the photo."
	case ErrorTypeNetwork:
		return "Network error. Please check your connection."
	case ErrorTypeServer:
		return appErr.Message
	case ErrorTypeRequestSetup:
		return "An unexpected error occurred."
	default:
		return appErr.Message
	}
}
