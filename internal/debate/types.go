// Package debate implements the orchestration engine for a moderated,
// turn-based debate between two persona-driven speakers.
//
// The central type is [Machine], a per-session state machine that owns the
// phase, agenda cursor, pause flag, and transcript of one debate and exposes
// the full transition API: Initialize, Start, Pause, Resume, Interject,
// Advance, and Reset. Timed advancement is driven externally by the
// scheduler package; who speaks next is decided by the rotation package;
// utterance generation is delegated to a [Responder].
//
// All precondition violations surface as typed sentinel errors (see
// errors.go). Collaborator failures never end a session — every generation
// path has a deterministic fallback.
package debate

// Mode is the current phase of a debate session.
type Mode string

const (
	ModeSetup         Mode = "setup"
	ModeOpening       Mode = "opening"
	ModePolicy        Mode = "policy_discussion"
	ModeRebuttal      Mode = "rebuttal"
	ModeClosing       Mode = "closing"
	ModeUserQuestions Mode = "user_questions"
)

// QuestionCategory classifies an agenda question.
type QuestionCategory string

const (
	CategoryOpening          QuestionCategory = "opening"
	CategoryPolicy           QuestionCategory = "policy"
	CategoryRebuttal         QuestionCategory = "rebuttal"
	CategoryClosing          QuestionCategory = "closing"
	CategoryUserInterjection QuestionCategory = "user_interjection"
)

// IsValid reports whether c is a recognised question category.
func (c QuestionCategory) IsValid() bool {
	switch c {
	case CategoryOpening, CategoryPolicy, CategoryRebuttal, CategoryClosing, CategoryUserInterjection:
		return true
	}
	return false
}

// Mode returns the session phase implied by a question of this category.
func (c QuestionCategory) Mode() Mode {
	switch c {
	case CategoryOpening:
		return ModeOpening
	case CategoryPolicy:
		return ModePolicy
	case CategoryRebuttal:
		return ModeRebuttal
	case CategoryClosing:
		return ModeClosing
	case CategoryUserInterjection:
		return ModeUserQuestions
	}
	return ModeSetup
}

// Participant is the descriptor for one debate speaker. The ProfileRef is
// opaque to the engine; the Response Coordinator resolves it against the
// persona store and tolerates absence.
type Participant struct {
	// ID is the stable unique identifier for this participant. Required.
	ID string

	// Name is the display name used in prompts and transcripts. Required.
	Name string

	// Chamber is the chamber or role tag (e.g., "senate", "house"). Required.
	Chamber string

	// Affiliation is the affiliation tag.
	Affiliation string

	// ProfileRef optionally points at a stored personality profile.
	ProfileRef string
}

// complete reports whether the descriptor carries the fields Initialize
// requires.
func (p Participant) complete() bool {
	return p.ID != "" && p.Name != "" && p.Chamber != ""
}

// Question is one moderator prompt. Immutable once part of an agenda.
type Question struct {
	// ID identifies the question; turns answering it carry it as QuestionID.
	ID string

	// Text is the question as spoken by the moderator.
	Text string

	// Category classifies the question and drives phase progression.
	Category QuestionCategory
}
