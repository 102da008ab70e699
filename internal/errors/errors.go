package errors

import "errors"

// This package defines a centralized set of sentinel errors for the application.
// Using sentinel errors allows services to return specific, recognizable error types
// without coupling them to implementation details like HTTP status codes. The API
// layer can then use `errors.Is()` to check for these specific errors and map
// them to the correct HTTP responses.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// business rule validation.
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited signifies that the upstream AI gateway refused the request
	// because of rate limiting. Recoverable: the user retries on their own.
	// Mapped to a 429 Too Many Requests HTTP status.
	ErrRateLimited = errors.New("rate limited")

	// ErrPaymentRequired signifies that the upstream AI gateway refused the
	// request because the workspace is out of credit. Kept distinct from a
	// generic failure because remediation differs (add funds, not retry).
	// Mapped to a 402 Payment Required HTTP status.
	ErrPaymentRequired = errors.New("payment required")

	// ErrCanceled signifies that the caller aborted an in-flight stream.
	// Never treated as a failure state by consumers.
	ErrCanceled = errors.New("generation stopped by user")

	// ErrUpstream signifies that an upstream provider returned a failure that
	// could not be classified further.
	// Mapped to a 502 Bad Gateway HTTP status.
	ErrUpstream = errors.New("upstream provider error")

	// ErrInternal signifies an unexpected error on the server. This is a generic
	// error used to prevent leaking sensitive implementation details to the client.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")
)
