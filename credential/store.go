package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for the given identifier.
var ErrNotFound = errors.New("credential not found")

// ErrStateConflict is returned when a transition targets a record that is no
// longer VALID. Under concurrent rotation this is the loser's result.
var ErrStateConflict = errors.New("credential not in valid state")

// ErrStoreUnavailable wraps backend failures (connectivity, transactions).
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store persists rotating refresh-credential records.
//
// All mutations are conditional on the record still being VALID; stores must
// guarantee that of N concurrent Consume or Revoke calls on one record,
// exactly one succeeds and the rest observe ErrStateConflict. Consume
// additionally inserts the replacement record in the same transaction scope,
// so a failed insert leaves the old record VALID.
type Store interface {
	// Create persists a new record. The record must be in StatusValid.
	Create(ctx context.Context, rec *Record) error

	// FindByID returns the record for the identifier, or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// Consume transitions id from VALID to USED at usedAt and inserts the
	// replacement record, atomically. Returns ErrNotFound if no record
	// exists, ErrStateConflict if the record is already terminal.
	Consume(ctx context.Context, id uuid.UUID, usedAt time.Time, replacement *Record) error

	// Revoke transitions id from VALID to REVOKED at revokedAt. Returns
	// ErrNotFound or ErrStateConflict under the same rules as Consume.
	Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error

	// RevokeAllForOwner revokes every VALID record owned by owner and
	// returns how many were transitioned. Zero matches is not an error.
	RevokeAllForOwner(ctx context.Context, owner uuid.UUID, revokedAt time.Time) (int64, error)

	// Purge deletes every record that has expired at now or sits in a
	// terminal state, returning the number deleted. VALID, unexpired
	// records are never touched.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
