package authority

import (
	"context"
	"io"

	"github.com/google/uuid"

	internalaudit "github.com/Samson23-ux/authority/internal/audit"
)

// Identity is the account record an [IdentityProvider] returns. The
// authority never stores identities itself; it only holds refresh
// credentials keyed by Identity.ID.
type Identity struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
}

// IdentityProvider is the interface callers implement to connect the
// authority to their account database.
type IdentityProvider interface {
	IdentityByEmail(ctx context.Context, email string) (*Identity, error)
	IdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, newHash string) error
}

// TokenPair carries a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by [Authority.ValidateAccess] and
// [Authority.ValidateRefresh] after a token verifies.
type AuthResult struct {
	IdentityID  uuid.UUID
	DisplayName string
}

// AuditEvent is a structured audit record emitted by the authority.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the authority's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
