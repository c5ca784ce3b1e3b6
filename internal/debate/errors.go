package debate

import "errors"

// Precondition violations returned by the transition API. The session is
// left unchanged whenever one of these is returned.
var (
	// ErrInvalidParticipants is returned by Initialize when a participant
	// descriptor is missing its id, name, or role tag.
	ErrInvalidParticipants = errors.New("debate: participant descriptor incomplete")

	// ErrNotInitialized is returned by Start when topic or participants are
	// unset.
	ErrNotInitialized = errors.New("debate: session not initialized")

	// ErrNotRunning is returned by Pause when the session is not running.
	ErrNotRunning = errors.New("debate: session not running")

	// ErrNotPaused is returned by Resume when the session is not paused.
	ErrNotPaused = errors.New("debate: session not paused")

	// ErrMustBePaused is returned by Interject when the session is not
	// paused. Interjections are only accepted while paused so the user's
	// question and both responses stay contiguous in the transcript.
	ErrMustBePaused = errors.New("debate: session must be paused to interject")
)
