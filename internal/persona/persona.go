// Package persona provides storage for participant personality profiles.
//
// A [Profile] is the declarative description of how a debate participant
// speaks and what they stand for — background, rhetorical style, and issue
// positions. The Response Coordinator folds a profile into the system prompt
// for every generated turn; a participant without a stored profile is valid
// and receives a generic persona description instead.
//
// The primary abstraction is the [Store] interface. The reference
// implementation [PostgresStore] keeps profiles in a single
// persona_profiles table with JSONB columns for structured sub-fields;
// [MemStore] serves tests and single-process runs.
package persona

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Store.GetProfile when no profile exists for the
// requested participant. Callers are expected to treat it as a degraded-but-
// valid state, not a failure.
var ErrNotFound = errors.New("persona: profile not found")

// Profile is the personality record for one debate participant.
type Profile struct {
	// ParticipantID links the profile to a participant descriptor.
	ParticipantID string `yaml:"participant_id" json:"participant_id"`

	// Name is the participant's display name.
	Name string `yaml:"name" json:"name"`

	// Chamber is the participant's chamber or role tag (e.g., "senate").
	Chamber string `yaml:"chamber" json:"chamber"`

	// Affiliation is the participant's affiliation tag.
	Affiliation string `yaml:"affiliation" json:"affiliation"`

	// Background is a free-text biography folded into the system prompt.
	Background string `yaml:"background" json:"background"`

	// Style describes rhetorical habits: cadence, favourite framings,
	// typical sentence length.
	Style string `yaml:"style" json:"style"`

	// Positions maps policy areas to stated positions
	// (e.g., "infrastructure" → "favours federal investment, cites jobs").
	Positions map[string]string `yaml:"positions" json:"positions"`

	// CreatedAt is the time the profile was first persisted.
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// UpdatedAt is the time the profile was last modified.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Validate checks that the profile is persistable.
func (p *Profile) Validate() error {
	if p.ParticipantID == "" {
		return fmt.Errorf("persona: participant_id must not be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("persona: name must not be empty")
	}
	return nil
}
