package octoprint

import "errors"

// Domain-specific errors for OctoPrint operations.
var (
	// ErrRequestFailed is returned when the REST API cannot be reached.
	ErrRequestFailed = errors.New("octoprint: request failed")

	// ErrUnexpectedStatus is returned for non-success HTTP responses.
	ErrUnexpectedStatus = errors.New("octoprint: unexpected status")

	// ErrInvalidResponse is returned when a response body cannot be decoded.
	ErrInvalidResponse = errors.New("octoprint: invalid response")

	// ErrNotEventTopic is returned for MQTT topics outside the event hierarchy.
	ErrNotEventTopic = errors.New("octoprint: not an event topic")

	// ErrInvalidEvent is returned when an event payload is not a JSON object.
	ErrInvalidEvent = errors.New("octoprint: invalid event payload")
)
