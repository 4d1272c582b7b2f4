package authority

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/Samson23-ux/authority/internal/audit"
)

const (
	auditEventSignInSuccess            = "signin_success"
	auditEventSignInFailure            = "signin_failure"
	auditEventSignInRateLimited        = "signin_rate_limited"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventRefreshRateLimited       = "refresh_rate_limited"
	auditEventRefreshReuseDetected     = "refresh_reuse_detected"
	auditEventSignOut                  = "signout"
	auditEventSignOutAll               = "signout_all"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventReaperSweep              = "reaper_sweep"
)

// AuditErrorCode is the stable error identifier carried in audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrCredentialReuse    AuditErrorCode = "credential_reuse"
	auditErrCredentialInvalid  AuditErrorCode = "credential_invalid"
	auditErrCredentialExpired  AuditErrorCode = "credential_expired"
	auditErrIdentityUnknown    AuditErrorCode = "identity_unknown"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (a *Authority) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	credentialID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if a == nil || a.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		IdentityID:   identityID,
		CredentialID: credentialID,
		IP:           clientIPFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	a.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrSignInRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrCredentialConsumed):
		return auditErrCredentialReuse
	case errors.Is(err, ErrCredentialExpired):
		return auditErrCredentialExpired
	case errors.Is(err, ErrCredentialMalformed),
		errors.Is(err, ErrCredentialUnknown),
		errors.Is(err, ErrCredentialMismatch),
		errors.Is(err, ErrAccessTokenInvalid):
		return auditErrCredentialInvalid
	case errors.Is(err, ErrIdentityUnknown):
		return auditErrIdentityUnknown
	case errors.Is(err, ErrAuthentication):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
