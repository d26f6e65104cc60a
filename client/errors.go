package client

import "errors"

var (
	// ErrUnauthorized maps a 401 response. The session has already been
	// cleared by the pipeline when this is returned.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden maps a 403 response. Surfaced without side effects; the
	// caller decides how to react.
	ErrForbidden = errors.New("forbidden")
	// ErrRequestFailed wraps any other non-2xx response.
	ErrRequestFailed = errors.New("request failed")
	// ErrDecodeResponse is returned when a response body cannot be parsed.
	ErrDecodeResponse = errors.New("failed to decode response")
)
