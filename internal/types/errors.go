package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers and components MUST use these constants instead of hardcoded strings.
const (
	// Validation (400): operator input rejected, no partial effect.
	ErrCodeValidationEmptyEmail    ErrorCode = "validation_empty_email"
	ErrCodeValidationNoRecipients  ErrorCode = "validation_no_recipients"
	ErrCodeValidationTestAddress   ErrorCode = "validation_test_address_missing"
	ErrCodeValidationUpload        ErrorCode = "validation_invalid_upload"
	ErrCodeValidationForm          ErrorCode = "validation_invalid_form"

	// Storage (500): subscriber table or upload store failures.
	ErrCodeStorageQuery       ErrorCode = "storage_query_failed"
	ErrCodeStorageUnavailable ErrorCode = "storage_unavailable"
	ErrCodeStorageUpload      ErrorCode = "storage_upload_failed"

	// Configuration (500): incomplete transport/sender settings. Detected
	// before any send is attempted.
	ErrCodeConfigMail ErrorCode = "config_mail_incomplete"

	// Transport (502): per-recipient delivery failures. Collected into the
	// dispatch report, never aborting the batch.
	ErrCodeTransportConnect     ErrorCode = "transport_connect_failed"
	ErrCodeTransportAuth        ErrorCode = "transport_auth_failed"
	ErrCodeTransportRejected    ErrorCode = "transport_rejected"
	ErrCodeTransportTimeout     ErrorCode = "transport_timeout"
	ErrCodeTransportRateLimited ErrorCode = "transport_rate_limited"

	// Internal (500)
	ErrCodeInternalRender     ErrorCode = "internal_render_failed"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the HTTP layer to translate AppErrors into responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "transport_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "storage_"),
		strings.HasPrefix(s, "config_"),
		strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the tool.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Reason extracts the human-readable cause from an error for the dispatch
// report: the AppError message plus the underlying error when present, or the
// plain error text for anything else.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %s", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	return err.Error()
}
