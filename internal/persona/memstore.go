package persona

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory [Store] for tests and single-process runs.
// All methods are safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty, ready-to-use [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]Profile)}
}

// GetProfile implements [Store].
func (s *MemStore) GetProfile(_ context.Context, participantID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[participantID]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

// PutProfile implements [Store].
func (s *MemStore) PutProfile(_ context.Context, profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *profile
	if prev, ok := s.profiles[profile.ParticipantID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.profiles[profile.ParticipantID] = stored
	return nil
}

// DeleteProfile implements [Store].
func (s *MemStore) DeleteProfile(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, participantID)
	return nil
}

// ListProfiles implements [Store].
func (s *MemStore) ListProfiles(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}
