package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Samson23-ux/authority/credential"
)

// Store is a pgx-backed credential.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const recordColumns = `id, owner_id, secret_digest, status, created_at, expires_at, used_at, revoked_at`

// Create persists a new record.
func (s *Store) Create(ctx context.Context, rec *credential.Record) error {
	const query = `
		INSERT INTO refresh_credentials (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.OwnerID, rec.SecretDigest[:], rec.Status.String(),
		rec.CreatedAt, rec.ExpiresAt, rec.UsedAt, rec.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert credential: %v", credential.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID returns the record for the identifier embedded in a refresh token.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*credential.Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM refresh_credentials
		WHERE id = $1
	`
	return s.scanRecord(s.pool.QueryRow(ctx, query, id))
}

// Consume marks id USED and inserts the replacement in one transaction.
// Exactly one of any number of concurrent calls for the same id commits;
// the rest roll back with ErrStateConflict (or ErrNotFound once reaped).
func (s *Store) Consume(ctx context.Context, id uuid.UUID, usedAt time.Time, replacement *credential.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin consume: %v", credential.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	const consume = `
		UPDATE refresh_credentials
		SET status = 'used', used_at = $2
		WHERE id = $1 AND status = 'valid'
	`
	tag, err := tx.Exec(ctx, consume, id, usedAt)
	if err != nil {
		return fmt.Errorf("%w: consume credential: %v", credential.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		const probe = `SELECT EXISTS (SELECT 1 FROM refresh_credentials WHERE id = $1)`
		if err := tx.QueryRow(ctx, probe, id).Scan(&exists); err != nil {
			return fmt.Errorf("%w: probe credential: %v", credential.ErrStoreUnavailable, err)
		}
		if !exists {
			return credential.ErrNotFound
		}
		return credential.ErrStateConflict
	}

	const insert = `
		INSERT INTO refresh_credentials (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, insert,
		replacement.ID, replacement.OwnerID, replacement.SecretDigest[:], replacement.Status.String(),
		replacement.CreatedAt, replacement.ExpiresAt, replacement.UsedAt, replacement.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert replacement: %v", credential.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit consume: %v", credential.ErrStoreUnavailable, err)
	}
	return nil
}

// Revoke marks id REVOKED if it is still VALID.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	const query = `
		UPDATE refresh_credentials
		SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status = 'valid'
	`
	tag, err := s.pool.Exec(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("%w: revoke credential: %v", credential.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		const probe = `SELECT EXISTS (SELECT 1 FROM refresh_credentials WHERE id = $1)`
		if err := s.pool.QueryRow(ctx, probe, id).Scan(&exists); err != nil {
			return fmt.Errorf("%w: probe credential: %v", credential.ErrStoreUnavailable, err)
		}
		if !exists {
			return credential.ErrNotFound
		}
		return credential.ErrStateConflict
	}
	return nil
}

// RevokeAllForOwner revokes every VALID record owned by owner.
func (s *Store) RevokeAllForOwner(ctx context.Context, owner uuid.UUID, revokedAt time.Time) (int64, error) {
	const query = `
		UPDATE refresh_credentials
		SET status = 'revoked', revoked_at = $2
		WHERE owner_id = $1 AND status = 'valid'
	`
	tag, err := s.pool.Exec(ctx, query, owner, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke owner credentials: %v", credential.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// Purge deletes expired and terminal records.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		DELETE FROM refresh_credentials
		WHERE expires_at <= $1 OR status IN ('used', 'revoked')
	`
	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%w: purge credentials: %v", credential.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) scanRecord(row pgx.Row) (*credential.Record, error) {
	var (
		rec    credential.Record
		digest []byte
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &digest, &status,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.UsedAt, &rec.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan credential: %v", credential.ErrStoreUnavailable, err)
	}

	if len(digest) != len(rec.SecretDigest) {
		return nil, fmt.Errorf("%w: secret digest length %d", credential.ErrStoreUnavailable, len(digest))
	}
	copy(rec.SecretDigest[:], digest)

	st, ok := credential.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", credential.ErrStoreUnavailable, status)
	}
	rec.Status = st

	return &rec, nil
}

var _ credential.Store = (*Store)(nil)
