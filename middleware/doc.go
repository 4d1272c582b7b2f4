// Package middleware exposes HTTP adapters for Authority validation.
//
// # Guards
//
//   - [Guard] — bearer access-token verification on the Authorization header.
//   - [GuardRefresh] — refresh-credential verification from a cookie, without
//     consuming the credential.
//
// Each guard calls into the Authority and injects the validated identity into
// the request context, retrievable with [AuthResultFromContext].
// [StatusForError] maps Authority errors onto HTTP statuses: authentication
// failures answer 401, rate limits 429, backend failures 500.
//
// This package translates HTTP semantics into Authority calls. It does not
// parse tokens or touch storage itself.
package middleware
