package domain

import "errors"

// Business-rule failures are expected outcomes and surface as sentinel errors
// so callers branch with errors.Is instead of string matching.
var (
	// ErrInvalidCredentials covers a missing user, a wrong password, and a
	// wrong provider for login. The message is identical for all three so an
	// attacker cannot enumerate registered emails.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicateUser is returned when signup targets an email that is
	// already registered.
	ErrDuplicateUser = errors.New("user with this email already exists")

	// ErrTermsNotAccepted is returned when the signup agreement flag is false.
	ErrTermsNotAccepted = errors.New("you must agree to the terms of service")

	// ErrPasswordMismatch is returned when signup passwords do not match.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrInvalidAssertion covers every federated-token verification failure:
	// bad signature, wrong audience, expiry, malformed input. The cause is
	// never exposed to callers.
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrInvalidOrExpiredToken is returned when a refresh token is absent or
	// past expiry.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")

	// ErrConfiguration marks missing process configuration (signing key,
	// federated client id). It is an operational fault, not a user error.
	ErrConfiguration = errors.New("authentication is not properly configured")

	// ErrStoreUnavailable wraps persistence timeouts and failures so the
	// transport edge can surface a transient-failure signal.
	ErrStoreUnavailable = errors.New("store unavailable")
)
