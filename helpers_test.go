package authority

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Samson23-ux/authority/credential"
)

const (
	testEmail    = "alice@example.com"
	testUsername = "alice"
	testPassword = "correct-horse-battery"
)

type stubIdentities struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]Identity
	byEmail map[string]uuid.UUID

	updatePasswordCalls int
	failUpdate          bool
}

func newStubIdentities() *stubIdentities {
	return &stubIdentities{
		byID:    make(map[uuid.UUID]Identity),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *stubIdentities) put(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[identity.ID] = identity
	s.byEmail[identity.Email] = identity.ID
}

func (s *stubIdentities) IdentityByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, errors.New("identity not found")
	}
	identity := s.byID[id]
	return &identity, nil
}

func (s *stubIdentities) IdentityByID(_ context.Context, id uuid.UUID) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, errors.New("identity not found")
	}
	return &identity, nil
}

func (s *stubIdentities) UpdatePasswordHash(_ context.Context, id uuid.UUID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatePasswordCalls++
	if s.failUpdate {
		return errors.New("update rejected")
	}
	identity, ok := s.byID[id]
	if !ok {
		return errors.New("identity not found")
	}
	identity.PasswordHash = newHash
	s.byID[id] = identity
	return nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 2 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abc")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789ab")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Reaper.Enabled = false
	return cfg
}

type testHarness struct {
	auth       *Authority
	store      *credential.MemoryStore
	identities *stubIdentities
	aliceID    uuid.UUID
}

// newTestAuthority builds an Authority against miniredis, the in-memory
// credential store, and a seeded identity provider. Optional mutators adjust
// the config before Build.
func newTestAuthority(t *testing.T, mutate ...func(*Config)) *testHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := credential.NewMemoryStore()
	identities := newStubIdentities()

	auth, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithIdentityProvider(identities).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(auth.Close)

	hash, err := auth.passwordHash.Hash(testPassword)
	if err != nil {
		t.Fatalf("seed hash failed: %v", err)
	}
	aliceID := uuid.New()
	identities.put(Identity{
		ID:           aliceID,
		Username:     testUsername,
		Email:        testEmail,
		PasswordHash: hash,
	})

	return &testHarness{
		auth:       auth,
		store:      store,
		identities: identities,
		aliceID:    aliceID,
	}
}

func (h *testHarness) signIn(t *testing.T) *TokenPair {
	t.Helper()
	pair, err := h.auth.SignIn(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	return pair
}

func recordIDForToken(t *testing.T, h *testHarness, refreshToken string) uuid.UUID {
	t.Helper()
	claims, err := h.auth.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		t.Fatalf("parse refresh failed: %v", err)
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		t.Fatalf("parse credential id failed: %v", err)
	}
	return id
}
