package authority

import (
	"context"
	"errors"
	"testing"

	"github.com/Samson23-ux/authority/credential"
)

func TestSignOutRevokesCredential(t *testing.T) {
	h := newTestAuthority(t)
	pair := h.signIn(t)

	if err := h.auth.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}

	id := recordIDForToken(t, h, pair.RefreshToken)
	rec, err := h.store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find record failed: %v", err)
	}
	if rec.Status != credential.StatusRevoked {
		t.Fatalf("expected revoked, got %s", rec.Status)
	}
	if rec.RevokedAt == nil {
		t.Fatal("expected revocation timestamp")
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	h := newTestAuthority(t)
	pair := h.signIn(t)

	if err := h.auth.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first sign-out failed: %v", err)
	}
	if err := h.auth.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("repeated sign-out must succeed: %v", err)
	}

	// Even after the reaper removes the record.
	if _, err := h.auth.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if err := h.auth.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("sign-out after reap must succeed: %v", err)
	}
}

func TestSignOutRejectsGarbageToken(t *testing.T) {
	h := newTestAuthority(t)

	err := h.auth.SignOut(context.Background(), "garbage")
	if !errors.Is(err, ErrCredentialMalformed) {
		t.Fatalf("expected ErrCredentialMalformed, got %v", err)
	}
}

func TestSignOutAllRevokesEverything(t *testing.T) {
	h := newTestAuthority(t)

	pair := h.signIn(t)

	if err := h.auth.SignOutAll(context.Background(), h.aliceID); err != nil {
		t.Fatalf("sign-out-all failed: %v", err)
	}

	if _, err := h.auth.ValidateRefresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrCredentialConsumed) {
		t.Fatalf("expected ErrCredentialConsumed after sign-out-all, got %v", err)
	}
	if _, err := h.auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrCredentialConsumed) {
		t.Fatalf("expected rotation rejected after sign-out-all, got %v", err)
	}
}

func TestSignOutMetrics(t *testing.T) {
	h := newTestAuthority(t, func(cfg *Config) {
		cfg.Metrics.Enabled = true
	})
	pair := h.signIn(t)

	if err := h.auth.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}

	snap := h.auth.MetricsSnapshot()
	if snap.Counters[MetricSignOut] != 1 {
		t.Fatalf("expected 1 sign-out, got %d", snap.Counters[MetricSignOut])
	}
	if snap.Counters[MetricCredentialRevoked] != 1 {
		t.Fatalf("expected 1 revoked credential, got %d", snap.Counters[MetricCredentialRevoked])
	}
}
