package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a rotating refresh credential.
type Status uint8

const (
	// StatusValid marks a credential that may still be presented for rotation.
	StatusValid Status = iota
	// StatusUsed marks a credential consumed by a successful rotation. Terminal.
	StatusUsed
	// StatusRevoked marks a credential invalidated by sign-out, password
	// change, or a superseding sign-in. Terminal.
	StatusRevoked
)

// String returns the storage representation of the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusUsed:
		return "used"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusUsed || s == StatusRevoked
}

// ParseStatus maps a storage representation back to a Status.
func ParseStatus(v string) (Status, bool) {
	switch v {
	case "valid":
		return StatusValid, true
	case "used":
		return StatusUsed, true
	case "revoked":
		return StatusRevoked, true
	default:
		return 0, false
	}
}

// Record is a single rotating refresh credential at rest.
//
// ID doubles as the nonce claim embedded in the signed refresh token, so
// lookups are by identifier rather than by raw value. The raw signed token
// is never stored; SecretDigest holds its SHA-256.
type Record struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	SecretDigest [32]byte
	Status       Status

	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	RevokedAt *time.Time
}

// Expired reports whether the record's lifetime has elapsed at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.UsedAt != nil {
		t := *r.UsedAt
		out.UsedAt = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

// DigestSecret hashes a raw refresh credential for at-rest storage.
func DigestSecret(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}

// MatchDigest compares two digests in constant time.
func MatchDigest(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
