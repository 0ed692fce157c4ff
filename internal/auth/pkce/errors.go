package pkce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// OAuthError represents an error the provider reported through the callback redirect.
type OAuthError struct {
	// Code is the OAuth error code.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// State is the state value echoed with the error, if any.
	State string `json:"state,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

// Error returns the provider's message as "code: description".
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// NewOAuthError creates a new OAuth error with the specified code, description, and status code.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		StatusCode:  statusCode,
	}
}

// AuthenticationError represents handshake failures that are not reported by the provider.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code, or exit code, associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches any AuthenticationError of the same Type, so callers can test
// against the base values below with errors.Is.
func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	return ok && t.Type == e.Type
}

// Common authentication error types.
var (
	// ErrEntropyFailure means the secure random source failed. It is not recoverable.
	ErrEntropyFailure = &AuthenticationError{
		Type:    "entropy_failure",
		Message: "Secure random source unavailable",
		Code:    http.StatusInternalServerError,
	}

	// ErrInvalidState means the callback state did not match the anti-forgery token.
	ErrInvalidState = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter does not match; the callback may be forged",
		Code:    http.StatusBadRequest,
	}

	// ErrMalformedCallback means a callback request lacked required parameters.
	ErrMalformedCallback = &AuthenticationError{
		Type:    "malformed_callback",
		Message: "OAuth callback is missing required parameters",
		Code:    http.StatusBadRequest,
	}

	// ErrServerStartFailed represents an error when starting the OAuth callback server fails.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse represents an error when the OAuth callback port cannot be bound.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}

	// ErrCallbackTimeout represents an error when waiting for OAuth callback times out.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}

	// ErrCancelled means the user interrupted the handshake.
	ErrCancelled = &AuthenticationError{
		Type:    "cancelled",
		Message: "Authentication cancelled",
		Code:    130,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// CancelledIfInterrupted reports err as ErrCancelled when ctx was cancelled
// while the request that produced err was in flight.
func CancelledIfInterrupted(ctx context.Context, err error) error {
	if err == nil || ctx == nil || !errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, ErrCancelled) {
		return err
	}
	return NewAuthenticationError(ErrCancelled, err)
}

// TokenExchangeError is returned when the token endpoint answers with an
// unexpected status or a body that cannot be used.
type TokenExchangeError struct {
	// Grant is the grant_type of the failed request.
	Grant string
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	// Body is the raw response body.
	Body string
	// Cause is set for transport and decoding failures.
	Cause error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Cause != nil:
		return fmt.Sprintf("%s token request failed: %v", e.Grant, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s token request returned status %d with unusable body %q: %v", e.Grant, e.StatusCode, e.Body, e.Cause)
	default:
		return fmt.Sprintf("%s token request failed with status %d: %s", e.Grant, e.StatusCode, e.Body)
	}
}

func (e *TokenExchangeError) Unwrap() error { return e.Cause }

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
func GetUserFriendlyMessage(err error) string {
	var tokenErr *TokenExchangeError
	switch {
	case IsAuthenticationError(err):
		var authErr *AuthenticationError
		errors.As(err, &authErr)
		switch authErr.Type {
		case ErrInvalidState.Type:
			return "Received state does not match the original state. Authentication possibly compromised."
		case ErrPortInUse.Type:
			return "Could not bind a local port for the OAuth callback. Please free a port and try again."
		case ErrCallbackTimeout.Type:
			return "Authentication timed out. Please try again."
		case ErrCancelled.Type:
			return "Authentication cancelled."
		case ErrEntropyFailure.Type:
			return "The system random source is unavailable."
		default:
			return "Authentication failed. Please try again."
		}
	case IsOAuthError(err):
		var oauthErr *OAuthError
		errors.As(err, &oauthErr)
		switch oauthErr.Code {
		case "access_denied":
			return "Authentication was cancelled or denied: " + oauthErr.Error()
		case "server_error":
			return "Authentication server error: " + oauthErr.Error()
		default:
			return "Authentication failed: " + oauthErr.Error()
		}
	case errors.As(err, &tokenErr):
		if tokenErr.StatusCode == 0 && tokenErr.Cause != nil {
			return fmt.Sprintf("Error occurred while retrieving token: %v", tokenErr.Cause)
		}
		return fmt.Sprintf("Error occurred while retrieving token (status %d): %s", tokenErr.StatusCode, tokenErr.Body)
	default:
		return "An unexpected error occurred. Please try again."
	}
}
