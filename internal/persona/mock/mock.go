// Package mock provides a test double for the persona.Store interface.
package mock

import (
	"context"
	"sync"

	"github.com/podiumworks/rostrum/internal/persona"
)

// Store is a mock implementation of persona.Store.
// The zero value returns persona.ErrNotFound for every lookup, which mirrors
// the valid "no stored profile" state.
type Store struct {
	mu sync.Mutex

	// Profiles maps participant id to the profile returned by GetProfile.
	Profiles map[string]*persona.Profile

	// GetErr, if non-nil, is returned by GetProfile instead of a lookup.
	GetErr error

	// GetCalls records the participant ids passed to GetProfile in order.
	GetCalls []string
}

// Compile-time interface check.
var _ persona.Store = (*Store)(nil)

// GetProfile records the call and returns the configured profile.
func (s *Store) GetProfile(_ context.Context, participantID string) (*persona.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, participantID)
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	p, ok := s.Profiles[participantID]
	if !ok {
		return nil, persona.ErrNotFound
	}
	out := *p
	return &out, nil
}

// PutProfile stores the profile in Profiles.
func (s *Store) PutProfile(_ context.Context, profile *persona.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Profiles == nil {
		s.Profiles = make(map[string]*persona.Profile)
	}
	cp := *profile
	s.Profiles[profile.ParticipantID] = &cp
	return nil
}

// DeleteProfile removes the profile from Profiles.
func (s *Store) DeleteProfile(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Profiles, participantID)
	return nil
}

// ListProfiles returns all profiles in Profiles in map order.
func (s *Store) ListProfiles(_ context.Context) ([]persona.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]persona.Profile, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		out = append(out, *p)
	}
	return out, nil
}
