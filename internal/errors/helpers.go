package errors

import (
	"fmt"
	"net/http"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(message)
}

// NewConflictError creates a session conflict error
func NewConflictError(sessionID, message string) *AppError {
	return New(ErrCodeSessionConflict, message).
		WithContext("session_id", sessionID).
		WithUserMessage(message)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewConnectionError wraps an adapter connect failure
func NewConnectionError(sessionID string, err error) *AppError {
	return Wrap(err, ErrCodeConnectionFailed, "failed to establish session").
		WithContext("session_id", sessionID).
		WithUserMessage("Failed to establish session")
}

// NewDeliveryError wraps a failed send
func NewDeliveryError(sessionID string, err error) *AppError {
	return Wrap(err, ErrCodeDeliveryFailed, "failed to deliver message").
		WithContext("session_id", sessionID).
		WithUserMessage("Failed to deliver message")
}

// NewStoreError creates a store error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreQuery, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Store operation failed")
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeSessionConflict:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeSessionNotConnected:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeWPPAPI, ErrCodeDeliveryFailed, ErrCodeConnectionFailed:
		if IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case ErrCodeStoreConnection, ErrCodeStoreQuery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
