// Package credential defines the rotating refresh-credential record, its
// state machine, and the Store contract the session authority persists
// records through.
//
// A Record moves through exactly one of two one-way transitions:
//
//	VALID -> USED     (consumed by rotation)
//	VALID -> REVOKED  (sign-out, password change, sign-in superseding)
//
// USED and REVOKED are terminal. Stores must enforce the transitions with
// conditional single-row updates so that concurrent consumers race to a
// single winner.
package credential
