// Package internal holds coordination code that is intentionally private to the
// authority module.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed fixed-window rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public authority API.
//   - Be imported by any package outside the authority module.
package internal
