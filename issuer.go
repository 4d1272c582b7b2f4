package authority

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Samson23-ux/authority/credential"
)

// issuePair mints an access/refresh pair for the identity and persists the
// refresh record. The record ID is embedded in the refresh token's jti claim
// and only the digest of the signed token is stored.
func (a *Authority) issuePair(ctx context.Context, identity *Identity) (*TokenPair, *credential.Record, error) {
	recordID := uuid.New()

	refresh, expiresAt, err := a.jwtManager.CreateRefresh(identity.ID.String(), identity.Username, recordID.String())
	if err != nil {
		return nil, nil, serverError(err)
	}

	rec := &credential.Record{
		ID:           recordID,
		OwnerID:      identity.ID,
		SecretDigest: credential.DigestSecret(refresh),
		Status:       credential.StatusValid,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    expiresAt,
	}
	if err := a.store.Create(ctx, rec); err != nil {
		return nil, nil, serverError(err)
	}

	access, _, err := a.jwtManager.CreateAccess(identity.ID.String(), identity.Username)
	if err != nil {
		return nil, nil, serverError(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, rec, nil
}
