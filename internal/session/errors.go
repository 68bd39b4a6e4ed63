package session

import "errors"

// Domain-specific errors for session operations.
var (
	// ErrNotConfirmed is returned when a destructive action was not confirmed.
	// Nothing is sent to the device in that case.
	ErrNotConfirmed = errors.New("session: action not confirmed")

	// ErrNotStarted is returned by actions that need Start to have run.
	ErrNotStarted = errors.New("session: not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrNoDiscoveryResource is returned by Start when the configured
	// discovery descriptor does not name a resource-lookup resource.
	ErrNoDiscoveryResource = errors.New("session: descriptor is not a resource-lookup resource")

	// ErrSelfLink is returned when a node would be linked to itself.
	ErrSelfLink = errors.New("session: cannot link a node to itself")

	// ErrInvalidResourceURL is returned when a resource URL cannot be split
	// into address and path.
	ErrInvalidResourceURL = errors.New("session: invalid resource URL")

	// ErrMalformedPayload is returned when a device payload cannot be decoded.
	ErrMalformedPayload = errors.New("session: malformed payload")

	// ErrInvalidCommand is returned for malformed MQTT commands.
	ErrInvalidCommand = errors.New("session: invalid command")
)
