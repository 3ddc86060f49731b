package platform

import (
	"errors"
	"fmt"
	"time"
)

// AuthError represents an authentication failure (HTTP 401).
// It is the only gateway error that aborts a whole run.
type AuthError struct {
	// Message is the error message from the platform.
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("platform authentication failed: %s", e.Message)
}

// NotFoundError represents a missing resource (HTTP 404). A resource can
// disappear between the mark and commit phases; callers drop these silently.
type NotFoundError struct {
	// ResourceID is the identifier that could not be resolved.
	ResourceID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.ResourceID)
}

// PermissionError represents an authorization failure on a specific
// resource (HTTP 403).
type PermissionError struct {
	// ResourceID is the identifier the platform refused access to.
	ResourceID string

	// Message is the error message from the platform.
	Message string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied on %q: %s", e.ResourceID, e.Message)
}

// InvalidInputError represents a request the platform rejected as
// malformed or in an invalid state (HTTP 400/422).
type InvalidInputError struct {
	// ResourceID is the identifier involved, if any.
	ResourceID string

	// Message is the error message from the platform.
	Message string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("invalid input for %q: %s", e.ResourceID, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// RateLimitError represents a rate limit rejection (HTTP 429) with the
// retry-after duration if the platform provided one.
type RateLimitError struct {
	// RetryAfter is the duration to wait before retrying (if provided).
	RetryAfter time.Duration

	// Message is the error message from the platform.
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("platform rate limit exceeded: %s", e.Message)
}

// PlatformError represents any other platform-side failure, carrying the
// HTTP status code when applicable.
type PlatformError struct {
	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("platform error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("platform error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuth reports whether err is an AuthError anywhere in its chain.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsExpected reports whether err is one of the per-item error kinds the
// reconciler treats as data rather than a run failure: not-found,
// permission, invalid-input and rate-limit errors.
func IsExpected(err error) bool {
	var (
		nf *NotFoundError
		pe *PermissionError
		ie *InvalidInputError
		re *RateLimitError
	)
	return errors.As(err, &nf) || errors.As(err, &pe) || errors.As(err, &ie) || errors.As(err, &re)
}
