package auth

import "errors"

var (
	// ErrMissingCredential marks a request that arrived without the
	// required bearer token or session cookie.
	ErrMissingCredential = errors.New("auth: missing credential")

	// ErrInvalidCredential marks a credential that failed validation:
	// an undecodable session cookie, a malformed bearer token, or a
	// pre-shared key that matched no keyring entry.
	ErrInvalidCredential = errors.New("auth: invalid credential")

	// ErrSessionExpired marks a session whose token is past expiry; the
	// client must re-authenticate.
	ErrSessionExpired = errors.New("auth: session expired")

	// ErrTokenNotFound is returned by token stores for unknown
	// identities.
	ErrTokenNotFound = errors.New("auth: token not found")
)
