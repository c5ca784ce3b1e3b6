// Package rotation decides who speaks next in a debate.
//
// The policy is a pure function of the turn history plus an injected source
// of randomness: it never inspects pause or running flags — those belong to
// the state machine. Injecting the *rand.Rand lets tests pin a seed and
// assert both branches of the probabilistic follow-up exchange.
package rotation

import (
	"math/rand"

	"github.com/podiumworks/rostrum/internal/transcript"
)

// DefaultFollowUpProbability is the chance that participant A gets a
// follow-up exchange immediately after participant B, instead of the
// moderator moving to the next agenda question.
const DefaultFollowUpProbability = 0.3

// Policy selects the next speaker from turn history.
// Policy is not safe for concurrent use: the underlying rand.Rand is not
// synchronised. The state machine serialises calls per session.
type Policy struct {
	rng         *rand.Rand
	followUpPct float64
}

// Option is a functional option for [New].
type Option func(*Policy)

// WithFollowUpProbability overrides the probability of a participant
// follow-up exchange. Values are clamped to [0, 1].
func WithFollowUpProbability(p float64) Option {
	return func(pol *Policy) {
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		pol.followUpPct = p
	}
}

// New creates a Policy drawing entropy from rng.
func New(rng *rand.Rand, opts ...Option) *Policy {
	p := &Policy{
		rng:         rng,
		followUpPct: DefaultFollowUpProbability,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NextSpeaker returns who should produce the next turn given history.
//
// The fixed cycle is moderator → A → B → moderator, with one probabilistic
// wrinkle: after B, A may get a follow-up exchange — provided the debate has
// had at least one moderator turn, so the very first exchange cannot loop
// between participants before any question is on the table. User turns are
// transparent: the decision looks at the last scheduled (non-user) speaker.
func (p *Policy) NextSpeaker(history []transcript.Turn) transcript.Speaker {
	last, ok := lastScheduled(history)
	if !ok {
		return transcript.SpeakerModerator
	}

	switch last {
	case transcript.SpeakerModerator:
		return transcript.SpeakerParticipantA
	case transcript.SpeakerParticipantA:
		return transcript.SpeakerParticipantB
	case transcript.SpeakerParticipantB:
		if hasModeratorTurn(history) && p.rng.Float64() < p.followUpPct {
			return transcript.SpeakerParticipantA
		}
		return transcript.SpeakerModerator
	}
	return transcript.SpeakerModerator
}

// lastScheduled returns the most recent non-user speaker in history.
func lastScheduled(history []transcript.Turn) (transcript.Speaker, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Speaker != transcript.SpeakerUser {
			return history[i].Speaker, true
		}
	}
	return "", false
}

func hasModeratorTurn(history []transcript.Turn) bool {
	for _, t := range history {
		if t.Speaker == transcript.SpeakerModerator {
			return true
		}
	}
	return false
}
