package authority

import (
	"errors"
	"fmt"
)

// ErrAuthentication is the parent of every rejection caused by the caller's
// credentials. Transports map it to 401. Match with errors.Is.
var ErrAuthentication = errors.New("authentication failed")

// ErrServer is the parent of every failure caused by the authority itself or
// its backends. Transports map it to 500. Match with errors.Is.
var ErrServer = errors.New("server error")

var (
	// ErrInvalidCredentials rejects a sign-in with an unknown identifier or
	// wrong password. Deliberately indistinguishable from the outside.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	// ErrCredentialMalformed rejects a refresh token that does not parse or
	// carries a bad signature.
	ErrCredentialMalformed = fmt.Errorf("%w: malformed credential", ErrAuthentication)
	// ErrCredentialExpired rejects a refresh token past its expiry.
	ErrCredentialExpired = fmt.Errorf("%w: credential expired", ErrAuthentication)
	// ErrCredentialUnknown rejects a refresh token whose record no longer exists.
	ErrCredentialUnknown = fmt.Errorf("%w: credential unknown", ErrAuthentication)
	// ErrCredentialMismatch rejects a refresh token whose secret does not
	// match the stored digest.
	ErrCredentialMismatch = fmt.Errorf("%w: credential mismatch", ErrAuthentication)
	// ErrCredentialConsumed rejects a refresh token whose record is already
	// used or revoked. Reuse of a rotated token lands here.
	ErrCredentialConsumed = fmt.Errorf("%w: credential already consumed", ErrAuthentication)
	// ErrIdentityUnknown rejects an operation whose identity no longer exists.
	ErrIdentityUnknown = fmt.Errorf("%w: identity unknown", ErrAuthentication)
	// ErrAccessTokenInvalid rejects an access token that fails verification.
	ErrAccessTokenInvalid = fmt.Errorf("%w: invalid access token", ErrAuthentication)
)

var (
	// ErrSignInRateLimited rejects a sign-in denied by the rate limiter.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrRefreshRateLimited rejects a refresh denied by the rate limiter.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrNotReady reports use of an Authority that was not built successfully.
	ErrNotReady = errors.New("authority not initialized")
)

// serverError wraps a backend failure under ErrServer, preserving the cause
// for logs while keeping errors.Is(err, ErrServer) true.
func serverError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrServer, err)
}
