package secrets

import "errors"

// Error taxonomy shared by all store backends and the HTTP layer. Handlers
// match these with errors.Is and translate them into redirects; none of
// them ever reaches a page as text.
var (
	// ErrUserNotFound is returned by lookups that miss, including session
	// deserialization for a user that has been deleted.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when local registration collides with an
	// existing username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials covers both unknown-username and bad-password so
	// callers cannot distinguish which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable wraps transient persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
