// Package jwt mints and verifies the access and refresh tokens of the
// session authority using per-class signing keys and strict validation
// semantics.
package jwt
