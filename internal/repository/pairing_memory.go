package repository

import (
	"context"
	"sync"
	"time"

	"github.com/quoteboard/pairing-server/internal/model"
)

// MemoryPairingStore is a mutex-guarded PairingStore with the same
// conditional-write semantics as the Postgres store.
type MemoryPairingStore struct {
	mu      sync.Mutex
	records map[string]*model.PairingRecord
}

func NewMemoryPairingStore() *MemoryPairingStore {
	return &MemoryPairingStore{
		records: make(map[string]*model.PairingRecord),
	}
}

func (s *MemoryPairingStore) Insert(ctx context.Context, code string, createdAt, expiresAt time.Time) (*model.PairingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[code]; exists {
		return nil, ErrCodeConflict
	}

	rec := &model.PairingRecord{
		Code:      code,
		Status:    model.PairingStatusPending,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	s.records[code] = rec
	return clonePairing(rec), nil
}

func (s *MemoryPairingStore) Get(ctx context.Context, code string) (*model.PairingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[code]
	if !ok {
		return nil, ErrPairingNotFound
	}
	return clonePairing(rec), nil
}

func (s *MemoryPairingStore) TryApprove(ctx context.Context, code string, owner model.Identity, now time.Time) (*model.PairingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[code]
	if !ok {
		return nil, ErrPairingNotFound
	}
	if !rec.Status.CanTransitionTo(model.PairingStatusApproved) || rec.ExpiredAt(now) {
		return nil, approveFailure(rec, now)
	}

	ownerID, ownerEmail, approvedAt := owner.ID, owner.Email, now
	rec.Status = model.PairingStatusApproved
	rec.OwnerID = &ownerID
	rec.OwnerEmail = &ownerEmail
	rec.ApprovedAt = &approvedAt
	return clonePairing(rec), nil
}

func (s *MemoryPairingStore) TryConsume(ctx context.Context, code string, now time.Time) (*model.PairingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[code]
	if !ok {
		return nil, ErrPairingNotFound
	}
	if !rec.Status.CanTransitionTo(model.PairingStatusConsumed) || rec.ExpiredAt(now) {
		return nil, consumeFailure(rec)
	}

	consumedAt := now
	rec.Status = model.PairingStatusConsumed
	rec.ConsumedAt = &consumedAt
	return clonePairing(rec), nil
}

func (s *MemoryPairingStore) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[code]
	if !ok || !rec.Status.CanTransitionTo(model.PairingStatusExpired) || !rec.ExpiredAt(now) {
		return false, nil
	}
	rec.Status = model.PairingStatusExpired
	return true, nil
}

func (s *MemoryPairingStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for code, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, code)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored records, swept or not.
func (s *MemoryPairingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func clonePairing(rec *model.PairingRecord) *model.PairingRecord {
	out := *rec
	return &out
}

var _ PairingStore = (*MemoryPairingStore)(nil)
