// Package transcript provides the append-only ordered record of debate turns
// and the types that make up one recorded turn.
//
// A [Log] is the single source of truth for a session's history: turns are
// appended strictly in production order and never edited or reordered after
// append. Reads return snapshot copies so callers can iterate without holding
// the log's lock.
package transcript

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerModerator    Speaker = "moderator"
	SpeakerParticipantA Speaker = "participant_a"
	SpeakerParticipantB Speaker = "participant_b"
	SpeakerUser         Speaker = "user"
)

// Citation links an inline numeric marker in generated text back to the
// retrieved source chunk it references. Citations are derived by the
// citation resolver, never authored directly.
type Citation struct {
	// Marker is the integer referenced inline (the "2" in "[2]").
	Marker int

	// SourceURL is the canonical URL of the cited source.
	SourceURL string

	// Publisher is the human-readable publisher name.
	Publisher string

	// RetrievedAt is when the source was fetched into the corpus.
	RetrievedAt time.Time

	// AsOf is the source's own date, when known.
	AsOf time.Time

	// Quote is a short excerpt of the cited chunk.
	Quote string
}

// Turn is one atomic, appended unit of conversation content attributed to a
// single speaker. Turns are never edited after append; corrections require a
// new turn.
type Turn struct {
	// ID is the unique identifier for this turn.
	ID string

	// Speaker identifies who produced the turn.
	Speaker Speaker

	// Content is the utterance text.
	Content string

	// QuestionID back-references the agenda or interjection question this
	// turn answers. Empty for turns not driven by a question.
	QuestionID string

	// Citations are the resolved source references for Content, in first-
	// occurrence order of their markers.
	Citations []Citation

	// Timestamp is when the turn was appended.
	Timestamp time.Time

	// PausedAtCreation records whether the session was paused when this turn
	// was produced. Audit metadata only; never consulted for control flow.
	PausedAtCreation bool
}
