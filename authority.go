package authority

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Samson23-ux/authority/credential"
	internalaudit "github.com/Samson23-ux/authority/internal/audit"
	"github.com/Samson23-ux/authority/internal/rate"
	"github.com/Samson23-ux/authority/jwt"
	"github.com/Samson23-ux/authority/password"
)

// Authority issues, validates, rotates, and revokes session credentials.
//
// Authority instances are configured through Builder during initialization and
// are safe for concurrent use afterwards.
type Authority struct {
	config       Config
	store        credential.Store
	identities   IdentityProvider
	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger

	reaperStop chan struct{}
	reaperWG   sync.WaitGroup
	closeOnce  sync.Once
}

// Close stops the background reaper and drains the audit dispatcher.
func (a *Authority) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.reaperStop != nil {
			close(a.reaperStop)
			a.reaperWG.Wait()
		}
		if a.audit != nil {
			a.audit.Close()
		}
	})
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (a *Authority) AuditDropped() uint64 {
	if a == nil || a.audit == nil {
		return 0
	}
	return a.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and histograms.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return a.metrics.Snapshot()
}

func (a *Authority) metricInc(id MetricID) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.Inc(id)
}

func (a *Authority) metricAdd(id MetricID, n uint64) {
	if a == nil || a.metrics == nil || n == 0 {
		return
	}
	a.metrics.Add(id, n)
}

// SignIn verifies the email/password pair, revokes every credential the
// identity currently holds, and issues a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (a *Authority) SignIn(ctx context.Context, email, pass string) (*TokenPair, error) {
	if a == nil || a.passwordHash == nil {
		return nil, ErrNotReady
	}
	ip := clientIPFromContext(ctx)

	if a.rateLimiter != nil {
		if err := a.rateLimiter.CheckSignIn(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				a.metricInc(MetricSignInRateLimited)
				a.emitAudit(ctx, auditEventSignInRateLimited, false, "", "", ErrSignInRateLimited, func() map[string]string {
					return map[string]string{"identifier": email}
				})
				return nil, ErrSignInRateLimited
			}
			return nil, serverError(err)
		}
	}

	if email == "" || pass == "" {
		return nil, a.signInFailure(ctx, email, ip, "", "empty_input")
	}

	identity, err := a.identities.IdentityByEmail(ctx, email)
	if err != nil || identity == nil {
		return nil, a.signInFailure(ctx, email, ip, "", "identity_not_found")
	}

	ok, err := a.passwordHash.Verify(pass, identity.PasswordHash)
	if err != nil || !ok {
		return nil, a.signInFailure(ctx, email, ip, identity.ID.String(), "password_mismatch")
	}

	if a.config.Password.UpgradeOnSignIn {
		a.upgradePasswordHash(ctx, identity, pass)
	}
	pass = ""

	revoked, err := a.store.RevokeAllForOwner(ctx, identity.ID, time.Now().UTC())
	if err != nil {
		a.metricInc(MetricSignInFailure)
		a.emitAudit(ctx, auditEventSignInFailure, false, identity.ID.String(), "", serverError(err), func() map[string]string {
			return map[string]string{"identifier": email, "reason": "revoke_priors_failed"}
		})
		return nil, serverError(err)
	}
	a.metricAdd(MetricCredentialRevoked, uint64(revoked))

	pair, rec, err := a.issuePair(ctx, identity)
	if err != nil {
		a.metricInc(MetricSignInFailure)
		a.emitAudit(ctx, auditEventSignInFailure, false, identity.ID.String(), "", err, func() map[string]string {
			return map[string]string{"identifier": email, "reason": "issue_failed"}
		})
		return nil, err
	}

	if a.rateLimiter != nil {
		if err := a.rateLimiter.ResetSignIn(ctx, email, ip); err != nil {
			a.logger.Warn("sign-in limiter reset failed", zap.Error(err))
		}
	}

	a.metricInc(MetricSignInSuccess)
	a.metricInc(MetricCredentialIssued)
	a.emitAudit(ctx, auditEventSignInSuccess, true, identity.ID.String(), rec.ID.String(), nil, func() map[string]string {
		return map[string]string{"identifier": email}
	})

	return pair, nil
}

func (a *Authority) signInFailure(ctx context.Context, email, ip, identityID, reason string) error {
	if a.rateLimiter != nil {
		if err := a.rateLimiter.RecordSignInFailure(ctx, email, ip); err != nil {
			a.logger.Warn("sign-in failure count update failed", zap.Error(err))
		}
	}
	a.metricInc(MetricSignInFailure)
	a.emitAudit(ctx, auditEventSignInFailure, false, identityID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"identifier": email, "reason": reason}
	})
	return ErrInvalidCredentials
}

func (a *Authority) upgradePasswordHash(ctx context.Context, identity *Identity, pass string) {
	needs, err := a.passwordHash.NeedsUpgrade(identity.PasswordHash)
	if err != nil || !needs {
		return
	}
	upgraded, err := a.passwordHash.Hash(pass)
	if err != nil {
		a.logger.Warn("password hash upgrade generation failed", zap.Error(err))
		return
	}
	// Rehash update is best-effort and must not block a successful sign-in.
	if err := a.identities.UpdatePasswordHash(ctx, identity.ID, upgraded); err != nil {
		a.logger.Warn("password hash upgrade update failed", zap.Error(err))
	}
}

// Refresh rotates a refresh credential: the presented record moves to used and
// a replacement is inserted in the same transaction, so exactly one of any
// number of concurrent presentations of the same token wins. A token whose
// record is already used or revoked is rejected as consumed.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if a == nil || a.jwtManager == nil {
		return nil, ErrNotReady
	}

	claims, rec, err := a.resolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if rec.Status.Terminal() {
		a.metricInc(MetricRefreshReuseDetected)
		a.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.Subject, rec.ID.String(), ErrCredentialConsumed, nil)
		return nil, ErrCredentialConsumed
	}

	replacementID := uuid.New()
	nextRefresh, expiresAt, err := a.jwtManager.CreateRefresh(claims.Subject, claims.Name, replacementID.String())
	if err != nil {
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, rec.ID.String(), serverError(err), func() map[string]string {
			return map[string]string{"reason": "mint_replacement_failed"}
		})
		return nil, serverError(err)
	}

	now := time.Now().UTC()
	replacement := &credential.Record{
		ID:           replacementID,
		OwnerID:      rec.OwnerID,
		SecretDigest: credential.DigestSecret(nextRefresh),
		Status:       credential.StatusValid,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}

	if err := a.store.Consume(ctx, rec.ID, now, replacement); err != nil {
		switch {
		case errors.Is(err, credential.ErrStateConflict):
			a.metricInc(MetricRefreshReuseDetected)
			a.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.Subject, rec.ID.String(), ErrCredentialConsumed, nil)
			return nil, ErrCredentialConsumed
		case errors.Is(err, credential.ErrNotFound):
			a.metricInc(MetricRefreshFailure)
			a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, rec.ID.String(), ErrCredentialUnknown, func() map[string]string {
				return map[string]string{"reason": "record_not_found"}
			})
			return nil, ErrCredentialUnknown
		default:
			a.metricInc(MetricRefreshFailure)
			a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, rec.ID.String(), serverError(err), func() map[string]string {
				return map[string]string{"reason": "consume_failed"}
			})
			return nil, serverError(err)
		}
	}

	access, _, err := a.jwtManager.CreateAccess(claims.Subject, claims.Name)
	if err != nil {
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, replacementID.String(), serverError(err), func() map[string]string {
			return map[string]string{"reason": "issue_access_failed"}
		})
		return nil, serverError(err)
	}

	a.metricInc(MetricRefreshSuccess)
	a.metricInc(MetricCredentialIssued)
	a.emitAudit(ctx, auditEventRefreshSuccess, true, claims.Subject, replacementID.String(), nil, nil)

	return &TokenPair{AccessToken: access, RefreshToken: nextRefresh}, nil
}

// resolveRefresh parses a raw refresh token, applies the refresh throttle, and
// loads its record, enforcing signature, expiry, and digest match. The record
// comes back with whatever status it has; state handling is the caller's.
func (a *Authority) resolveRefresh(ctx context.Context, refreshToken string) (*jwt.RefreshClaims, *credential.Record, error) {
	claims, err := a.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		reason := ErrCredentialMalformed
		if errors.Is(err, gjwt.ErrTokenExpired) {
			reason = ErrCredentialExpired
		}
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", reason, func() map[string]string {
			return map[string]string{"reason": "parse_failed"}
		})
		return nil, nil, reason
	}

	if a.rateLimiter != nil {
		if err := a.rateLimiter.CheckRefresh(ctx, claims.ID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				a.metricInc(MetricRefreshRateLimited)
				a.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.Subject, claims.ID, ErrRefreshRateLimited, nil)
				return nil, nil, ErrRefreshRateLimited
			}
			return nil, nil, serverError(err)
		}
	}

	credentialID, err := uuid.Parse(claims.ID)
	if err != nil {
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.ID, ErrCredentialMalformed, func() map[string]string {
			return map[string]string{"reason": "bad_credential_id"}
		})
		return nil, nil, ErrCredentialMalformed
	}

	rec, err := a.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			a.metricInc(MetricRefreshFailure)
			a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.ID, ErrCredentialUnknown, func() map[string]string {
				return map[string]string{"reason": "record_not_found"}
			})
			return nil, nil, ErrCredentialUnknown
		}
		return nil, nil, serverError(err)
	}

	if !credential.MatchDigest(rec.SecretDigest, credential.DigestSecret(refreshToken)) {
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.ID, ErrCredentialMismatch, func() map[string]string {
			return map[string]string{"reason": "digest_mismatch"}
		})
		return nil, nil, ErrCredentialMismatch
	}

	if rec.Expired(time.Now().UTC()) {
		a.metricInc(MetricRefreshFailure)
		a.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.ID, ErrCredentialExpired, func() map[string]string {
			return map[string]string{"reason": "record_expired"}
		})
		return nil, nil, ErrCredentialExpired
	}

	return claims, rec, nil
}

// ValidateRefresh checks a refresh token without consuming it: signature,
// expiry, record lookup, digest match, and state. Read-only.
func (a *Authority) ValidateRefresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if a == nil || a.jwtManager == nil {
		return nil, ErrNotReady
	}

	claims, rec, err := a.resolveRefresh(ctx, refreshToken)
	if err != nil {
		a.metricInc(MetricValidateFailure)
		return nil, err
	}
	if rec.Status != credential.StatusValid {
		a.metricInc(MetricValidateFailure)
		a.metricInc(MetricRefreshReuseDetected)
		a.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.Subject, rec.ID.String(), ErrCredentialConsumed, nil)
		return nil, ErrCredentialConsumed
	}

	result, err := resultFromSubject(claims.Subject, claims.Name)
	if err != nil {
		a.metricInc(MetricValidateFailure)
		return nil, ErrCredentialMalformed
	}
	a.metricInc(MetricValidateSuccess)
	return result, nil
}

// ValidateAccess verifies an access token and returns the identity it was
// issued to. Any verification failure is reported as an authentication error.
func (a *Authority) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if a == nil || a.jwtManager == nil {
		return nil, ErrNotReady
	}
	if a.metrics != nil && a.metrics.LatencyEnabled() {
		defer a.observeValidateLatency(time.Now())
	}

	claims, err := a.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		a.metricInc(MetricValidateFailure)
		return nil, ErrAccessTokenInvalid
	}

	result, err := resultFromSubject(claims.Subject, claims.Name)
	if err != nil {
		a.metricInc(MetricValidateFailure)
		return nil, ErrAccessTokenInvalid
	}
	a.metricInc(MetricValidateSuccess)
	return result, nil
}

// observeValidateLatency records the time elapsed since start. Deferred, so
// the duration is measured at function exit rather than at the defer site.
func (a *Authority) observeValidateLatency(start time.Time) {
	a.metrics.Observe(MetricValidateLatency, time.Since(start))
}

func resultFromSubject(subject, name string) (*AuthResult, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, err
	}
	return &AuthResult{IdentityID: id, DisplayName: name}, nil
}

// SignOut revokes the presented refresh credential. Revoking a credential
// that is already used, revoked, or reaped is a no-op, so retried sign-outs
// succeed.
func (a *Authority) SignOut(ctx context.Context, refreshToken string) error {
	if a == nil || a.jwtManager == nil {
		return ErrNotReady
	}

	claims, err := a.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		a.emitAudit(ctx, auditEventSignOut, false, "", "", ErrCredentialMalformed, func() map[string]string {
			return map[string]string{"reason": "parse_failed"}
		})
		return ErrCredentialMalformed
	}
	credentialID, err := uuid.Parse(claims.ID)
	if err != nil {
		a.emitAudit(ctx, auditEventSignOut, false, claims.Subject, claims.ID, ErrCredentialMalformed, func() map[string]string {
			return map[string]string{"reason": "bad_credential_id"}
		})
		return ErrCredentialMalformed
	}

	rec, err := a.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			a.emitAudit(ctx, auditEventSignOut, true, claims.Subject, claims.ID, nil, func() map[string]string {
				return map[string]string{"outcome": "already_gone"}
			})
			return nil
		}
		return serverError(err)
	}
	if !credential.MatchDigest(rec.SecretDigest, credential.DigestSecret(refreshToken)) {
		a.emitAudit(ctx, auditEventSignOut, false, claims.Subject, claims.ID, ErrCredentialMismatch, func() map[string]string {
			return map[string]string{"reason": "digest_mismatch"}
		})
		return ErrCredentialMismatch
	}

	err = a.store.Revoke(ctx, credentialID, time.Now().UTC())
	switch {
	case err == nil:
		a.metricInc(MetricSignOut)
		a.metricInc(MetricCredentialRevoked)
	case errors.Is(err, credential.ErrStateConflict), errors.Is(err, credential.ErrNotFound):
		err = nil
	default:
		return serverError(err)
	}
	a.emitAudit(ctx, auditEventSignOut, true, claims.Subject, claims.ID, nil, nil)
	return nil
}

// SignOutAll revokes every live credential the identity holds.
func (a *Authority) SignOutAll(ctx context.Context, identityID uuid.UUID) error {
	if a == nil || a.store == nil {
		return ErrNotReady
	}

	revoked, err := a.store.RevokeAllForOwner(ctx, identityID, time.Now().UTC())
	if err != nil {
		a.emitAudit(ctx, auditEventSignOutAll, false, identityID.String(), "", serverError(err), nil)
		return serverError(err)
	}

	a.metricInc(MetricSignOutAll)
	a.metricAdd(MetricCredentialRevoked, uint64(revoked))
	a.emitAudit(ctx, auditEventSignOutAll, true, identityID.String(), "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.FormatInt(revoked, 10)}
	})
	return nil
}

// ChangePassword verifies the caller's current password via the presented
// refresh credential, stores the new hash, and revokes every credential the
// identity holds so existing sessions must sign in again.
func (a *Authority) ChangePassword(ctx context.Context, refreshToken, oldPassword, newPassword string) error {
	if a == nil || a.passwordHash == nil {
		return ErrNotReady
	}
	if refreshToken == "" || oldPassword == "" || newPassword == "" {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_input"}
		})
		return ErrInvalidCredentials
	}

	claims, rec, err := a.resolveRefresh(ctx, refreshToken)
	if err != nil {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"reason": "credential_rejected"}
		})
		return err
	}
	if rec.Status.Terminal() {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, claims.Subject, rec.ID.String(), ErrCredentialConsumed, func() map[string]string {
			return map[string]string{"reason": "credential_consumed"}
		})
		return ErrCredentialConsumed
	}

	identity, err := a.identities.IdentityByID(ctx, rec.OwnerID)
	if err != nil || identity == nil {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, claims.Subject, rec.ID.String(), ErrIdentityUnknown, nil)
		return ErrIdentityUnknown
	}

	oldOK, err := a.passwordHash.Verify(oldPassword, identity.PasswordHash)
	if err != nil || !oldOK {
		a.metricInc(MetricPasswordChangeInvalidOld)
		a.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, identity.ID.String(), rec.ID.String(), ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	newHash, err := a.passwordHash.Hash(newPassword)
	if err != nil {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, identity.ID.String(), rec.ID.String(), serverError(err), func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return serverError(err)
	}

	if err := a.identities.UpdatePasswordHash(ctx, identity.ID, newHash); err != nil {
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, identity.ID.String(), rec.ID.String(), serverError(err), func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return serverError(err)
	}
	oldPassword = ""
	newPassword = ""

	revoked, err := a.store.RevokeAllForOwner(ctx, identity.ID, time.Now().UTC())
	if err != nil {
		a.logger.Error("credential revocation failed after password change", zap.Error(err))
		a.emitAudit(ctx, auditEventPasswordChangeFailure, false, identity.ID.String(), rec.ID.String(), serverError(err), func() map[string]string {
			return map[string]string{"reason": "revoke_failed"}
		})
		return serverError(err)
	}
	a.metricAdd(MetricCredentialRevoked, uint64(revoked))

	if a.rateLimiter != nil {
		// Limiter reset is best-effort and must not block a completed change.
		if err := a.rateLimiter.ResetSignIn(ctx, identity.Email, clientIPFromContext(ctx)); err != nil {
			a.logger.Warn("sign-in limiter reset failed after password change", zap.Error(err))
		}
	}

	a.metricInc(MetricPasswordChangeSuccess)
	a.emitAudit(ctx, auditEventPasswordChangeSuccess, true, identity.ID.String(), "", nil, nil)
	return nil
}

// Sweep deletes every record that is expired or in a terminal state and
// returns the number removed. Live valid records are never touched.
func (a *Authority) Sweep(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, ErrNotReady
	}

	purged, err := a.store.Purge(ctx, time.Now().UTC())
	if err != nil {
		a.emitAudit(ctx, auditEventReaperSweep, false, "", "", serverError(err), nil)
		return 0, serverError(err)
	}

	a.metricAdd(MetricReaperPurged, uint64(purged))
	a.emitAudit(ctx, auditEventReaperSweep, true, "", "", nil, func() map[string]string {
		return map[string]string{"purged": strconv.FormatInt(purged, 10)}
	})
	return purged, nil
}
