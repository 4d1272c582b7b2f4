// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - authority:signin:email: — sign-in per-identifier
//   - authority:signin:ip:    — sign-in per-IP
//   - authority:refresh:      — refresh per-credential
//
// # What this package must NOT do
//
//   - Decide when counters reset on success (the Authority does that).
//   - Be imported outside this module.
package rate
