// Package errors defines the application error taxonomy shared by use cases and delivery.
package errors

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Category classifies an AppError for retry and propagation decisions.
type Category string

const (
	CategoryTransientIO     Category = "transient_io"
	CategoryValidation      Category = "validation"
	CategoryStaleState      Category = "stale_state"
	CategoryNotFound        Category = "not_found"
	CategoryUnauthenticated Category = "unauthenticated"
	CategoryForbidden       Category = "forbidden"
	CategoryInternal        Category = "internal"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int      // HTTP status code
	ErrorCode() string  // Business error code
	Message() string    // User-friendly error message
	Details() string    // Detailed error information (optional)
	Category() Category // Taxonomy bucket
	Retryable() bool    // Whether retrying the same input may succeed
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
	category  Category
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string, category Category) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
		category:  category,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// Category returns the taxonomy bucket
func (e *BaseError) Category() Category {
	return e.category
}

// Retryable reports whether the failure is transient
func (e *BaseError) Retryable() bool {
	return e.category == CategoryTransientIO
}

// Is matches errors sharing the same business code, so WithDetails copies still match the sentinel.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
		category:  e.category,
	}
}

// Predefined error types
var (
	// Validation failures: not retryable without changing input
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"輸入資料驗證失敗",
		"",
		CategoryValidation,
	)

	ErrGoingLimitExceeded = NewBaseError(
		http.StatusUnprocessableEntity,
		"GOING_LIMIT_EXCEEDED",
		"同時最多只能標記三個想去的地點",
		"",
		CategoryValidation,
	)

	ErrPromotionInactive = NewBaseError(
		http.StatusUnprocessableEntity,
		"PROMOTION_INACTIVE",
		"此優惠目前不在活動期間",
		"",
		CategoryValidation,
	)

	// Lookup failures
	ErrPromotionNotFound = NewBaseError(
		http.StatusNotFound,
		"PROMOTION_NOT_FOUND",
		"找不到該優惠",
		"",
		CategoryNotFound,
	)

	ErrPlaceNotFound = NewBaseError(
		http.StatusNotFound,
		"PLACE_NOT_FOUND",
		"找不到該地點",
		"",
		CategoryNotFound,
	)

	ErrLivePostNotFound = NewBaseError(
		http.StatusNotFound,
		"LIVE_POST_NOT_FOUND",
		"找不到該動態",
		"",
		CategoryNotFound,
	)

	ErrMatchNotFound = NewBaseError(
		http.StatusNotFound,
		"MATCH_NOT_FOUND",
		"找不到該配對",
		"",
		CategoryNotFound,
	)

	// Authorization failures
	ErrNotAuthenticated = NewBaseError(
		http.StatusUnauthorized,
		"NOT_AUTHENTICATED",
		"請先登入",
		"",
		CategoryUnauthenticated,
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"存取被拒絕",
		"",
		CategoryForbidden,
	)

	// Transient failures: safe to retry
	ErrRemoteUnavailable = NewBaseError(
		http.StatusServiceUnavailable,
		"REMOTE_UNAVAILABLE",
		"遠端服務暫時無法使用，請稍後再試",
		"",
		CategoryTransientIO,
	)

	ErrClaimTimeout = NewBaseError(
		http.StatusGatewayTimeout,
		"CLAIM_TIMEOUT",
		"領取優惠逾時，請重試",
		"",
		CategoryTransientIO,
	)

	// State conflicts that survived reconciliation
	ErrStaleState = NewBaseError(
		http.StatusConflict,
		"STALE_STATE",
		"資料已被其他裝置變更，請重新整理",
		"",
		CategoryStaleState,
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"系統內部錯誤",
		"",
		CategoryInternal,
	)
)

// RemoteError represents a failed round trip to the remote store, implementing the AppError interface
type RemoteError struct {
	err     error
	details string
}

// NewRemoteError creates a transient remote-store error
func NewRemoteError(err error, details string) AppError {
	return &RemoteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return errors.Wrap(e.err, "remote store call failed").Error()
}

// Unwrap exposes the transport error
func (e *RemoteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *RemoteError) HTTPCode() int {
	return http.StatusServiceUnavailable
}

// ErrorCode returns the business error code
func (e *RemoteError) ErrorCode() string {
	return "REMOTE_CALL_FAILED"
}

// Message returns the user-friendly error message
func (e *RemoteError) Message() string {
	return "遠端服務呼叫失敗，請稍後再試"
}

// Details returns detailed error information
func (e *RemoteError) Details() string {
	return e.details
}

// Category returns the taxonomy bucket
func (e *RemoteError) Category() Category {
	return CategoryTransientIO
}

// Retryable reports whether the failure is transient
func (e *RemoteError) Retryable() bool {
	return true
}

// AsAppError extracts the AppError from err's chain.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}

	return nil, false
}

// IsRetryable reports whether err is a transient failure.
// Context deadlines count as transient; cancellation does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
