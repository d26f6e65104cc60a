package session

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects a login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshFailed is returned when the backend rejects a token refresh.
	// The session is forcibly cleared before this error is surfaced.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrNotAuthenticated is returned when an operation requires an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTokenExpired signals local expiry detection; it is not a server error.
	ErrTokenExpired = errors.New("session token expired")
	// ErrNotFound is returned when no (or only partial) credentials are persisted.
	ErrNotFound = errors.New("credentials not found")
	// ErrMissingUser is returned when a login grant arrives without a user record.
	ErrMissingUser = errors.New("grant is missing the user record")
	// ErrEncodeRecord is returned when a credential record cannot be serialized.
	ErrEncodeRecord = errors.New("failed to encode credential record")
	// ErrDecodeRecord is returned when persisted credentials cannot be parsed.
	ErrDecodeRecord = errors.New("failed to decode credential record")
	// ErrLoadCredentials is returned when reading the credential store fails.
	ErrLoadCredentials = errors.New("failed to load credentials")
	// ErrSaveCredentials is returned when writing the credential store fails.
	ErrSaveCredentials = errors.New("failed to save credentials")
)
