package persona

import "context"

// Store provides access to participant personality profiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetProfile retrieves the profile for a participant.
	// Returns [ErrNotFound] when no profile exists — absence is valid.
	GetProfile(ctx context.Context, participantID string) (*Profile, error)

	// PutProfile creates or replaces a profile. The profile is validated
	// before persistence.
	PutProfile(ctx context.Context, profile *Profile) error

	// DeleteProfile removes a profile. Deleting a non-existent profile is
	// not an error.
	DeleteProfile(ctx context.Context, participantID string) error

	// ListProfiles returns all stored profiles ordered by participant id.
	ListProfiles(ctx context.Context) ([]Profile, error)
}
