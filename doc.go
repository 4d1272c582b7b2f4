// Package authority issues, validates, and rotates session credentials: short-lived
// JWT access tokens paired with single-use rotating refresh tokens backed by a
// credential store.
//
// The package is designed for concurrent server workloads: Authority methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authority is the public surface. It exposes [Authority], [Builder], [Config], and
// value types (TokenPair, AuthResult, MetricsSnapshot, AuditEvent). Internal
// coordination — rate limiting and audit dispatch — lives under internal/ and is never
// exported. The credential, jwt, and password packages are importable on their own so
// callers can run migrations, parse tokens, or hash passwords outside an Authority.
//
// # What this package must NOT do
//
//   - Store identities. Accounts live behind the caller's [IdentityProvider]; the
//     authority only holds refresh-credential records keyed by identity ID.
//   - Persist raw refresh tokens. The store keeps a SHA-256 digest; the signed token
//     exists only in the caller's hands.
//   - Expose Redis clients, store internals, or token encoding details in its
//     public API.
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies the JWT signature locally and must
// complete without touching the credential store or Redis. SignIn, Refresh, and
// the sign-out operations are allowed store round-trips; Refresh performs its
// mark-used-and-replace transition in a single store call so concurrent rotations
// of the same credential produce exactly one winner.
package authority
