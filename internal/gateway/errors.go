package gateway

import "errors"

// Domain-specific errors for gateway operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestFailed is returned when a request never produced an HTTP
	// response (dial failure, timeout, cancelled context).
	ErrRequestFailed = errors.New("gateway: request failed")

	// ErrStatus is returned when the gateway answered with a non-2xx status.
	ErrStatus = errors.New("gateway: unexpected status")

	// ErrInvalidResource is returned for an empty resource URL.
	ErrInvalidResource = errors.New("gateway: resource URL cannot be empty")

	// ErrUnsupportedContentType is returned when a payload cannot be
	// encoded or decoded for the given content type.
	ErrUnsupportedContentType = errors.New("gateway: unsupported content type")
)
