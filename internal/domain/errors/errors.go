package errors

import (
	"net/http"

	"clubinex/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// Is matches errors by business code so WithDetails copies still match the
// predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e.errorCode == t.errorCode
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

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Referral network errors
	ErrSelfReferral = NewBaseError(
		http.StatusUnprocessableEntity,
		"SELF_REFERRAL",
		"a user cannot refer themselves",
		"",
	)

	ErrAlreadyReferred = NewBaseError(
		http.StatusConflict,
		"ALREADY_REFERRED",
		"the user already has a referrer",
		"",
	)

	ErrReferralCycle = NewBaseError(
		http.StatusUnprocessableEntity,
		"REFERRAL_CYCLE",
		"the referrer is already in the referred user's network",
		"",
	)

	ErrReferrerNotFound = NewBaseError(
		http.StatusNotFound,
		"REFERRER_NOT_FOUND",
		"referral code or mobile not found",
		"",
	)

	// Commission and point errors
	ErrCommissionOverflow = NewBaseError(
		http.StatusUnprocessableEntity,
		"COMMISSION_OVERFLOW",
		"commission amount is too large to be computed",
		"",
	)

	ErrInvalidAmount = NewBaseError(
		http.StatusBadRequest,
		"INVALID_AMOUNT",
		"amount must not be negative",
		"",
	)

	ErrInsufficientPoints = NewBaseError(
		http.StatusUnprocessableEntity,
		"INSUFFICIENT_POINTS",
		"point balance is too low",
		"",
	)

	ErrBalanceOverflow = NewBaseError(
		http.StatusUnprocessableEntity,
		"BALANCE_OVERFLOW",
		"point balance would overflow",
		"",
	)

	// User-related errors
	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"user not found",
		"",
	)

	ErrUserAlreadyExists = NewBaseError(
		http.StatusConflict,
		"USER_ALREADY_EXISTS",
		"mobile or email is already registered",
		"",
	)

	ErrUserDisabled = NewBaseError(
		http.StatusForbidden,
		"USER_DISABLED",
		"the account is disabled",
		"",
	)

	ErrUserNotActive = NewBaseError(
		http.StatusForbidden,
		"USER_NOT_ACTIVE",
		"the account has not been verified yet",
		"",
	)

	// Authentication-related errors
	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"mobile or password is incorrect",
		"",
	)

	ErrInvalidOTP = NewBaseError(
		http.StatusBadRequest,
		"INVALID_OTP",
		"the verification code is invalid or expired",
		"",
	)

	ErrRefreshTokenInvalid = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_TOKEN_INVALID",
		"refresh token is invalid or expired",
		"",
	)

	ErrPasswordHashFailed = NewBaseError(
		http.StatusInternalServerError,
		"PASSWORD_HASH_FAILED",
		"failed to process password",
		"",
	)

	ErrPasswordStrength = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_STRENGTH",
		"password is too weak",
		"",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"authentication required",
		"",
	)

	// Agent-related errors
	ErrAgentNotFound = NewBaseError(
		http.StatusNotFound,
		"AGENT_NOT_FOUND",
		"agent not found",
		"",
	)

	ErrAgentAlreadyExists = NewBaseError(
		http.StatusConflict,
		"AGENT_ALREADY_EXISTS",
		"the user is already an agent",
		"",
	)

	ErrAgentNotVerified = NewBaseError(
		http.StatusUnprocessableEntity,
		"AGENT_NOT_VERIFIED",
		"the agent is not verified or not active",
		"",
	)

	ErrAgentClientLimitReached = NewBaseError(
		http.StatusUnprocessableEntity,
		"AGENT_CLIENT_LIMIT_REACHED",
		"the agent has reached the maximum number of clients",
		"",
	)

	ErrClientAlreadyAssigned = NewBaseError(
		http.StatusConflict,
		"CLIENT_ALREADY_ASSIGNED",
		"the user already belongs to an agent",
		"",
	)

	// Dead-letter errors
	ErrFailedJobNotFound = NewBaseError(
		http.StatusNotFound,
		"FAILED_JOB_NOT_FOUND",
		"failed job not found",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"input validation failed",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal server error",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"access denied",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"resource not found",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

// IsPermanent reports whether retrying the operation that produced err can
// never succeed. Client-side AppErrors (4xx) are permanent, everything else
// is treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	appErr, ok := errors.Find[AppError](err)
	if !ok {
		return false
	}

	return appErr.HTTPCode() < http.StatusInternalServerError
}
