package credential

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-process Store. It mirrors the
// conditional-transition semantics of the Postgres store and backs the
// authority's own tests; it is not a durable backend.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
	}
}

// Create persists a copy of rec keyed by its ID.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ErrStateConflict
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// FindByID returns a copy of the stored record.
func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Consume marks id USED and inserts the replacement under one lock hold, so
// concurrent callers observe exactly one winner.
func (s *MemoryStore) Consume(ctx context.Context, id uuid.UUID, usedAt time.Time, replacement *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusValid {
		return ErrStateConflict
	}

	rec.Status = StatusUsed
	t := usedAt
	rec.UsedAt = &t
	s.records[replacement.ID] = replacement.Clone()
	return nil
}

// Revoke marks id REVOKED if it is still VALID.
func (s *MemoryStore) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusValid {
		return ErrStateConflict
	}

	rec.Status = StatusRevoked
	t := revokedAt
	rec.RevokedAt = &t
	return nil
}

// RevokeAllForOwner revokes every VALID record owned by owner.
func (s *MemoryStore) RevokeAllForOwner(ctx context.Context, owner uuid.UUID, revokedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rec := range s.records {
		if rec.OwnerID != owner || rec.Status != StatusValid {
			continue
		}
		rec.Status = StatusRevoked
		t := revokedAt
		rec.RevokedAt = &t
		n++
	}
	return n, nil
}

// Purge deletes expired and terminal records.
func (s *MemoryStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if rec.Status.Terminal() || rec.Expired(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Put stores a copy of rec unconditionally, replacing any existing record
// with the same ID. Test helper for staging expired or terminal records.
func (s *MemoryStore) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

var _ Store = (*MemoryStore)(nil)
