package agenda

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/internal/transcript"
)

// followUpScanTurns is how many recent participant turns are scanned for
// topic keywords.
const followUpScanTurns = 2

// keywordMatchThreshold is the Jaro-Winkler score above which a spoken
// token counts as one of a theme's keywords. High enough to reject loose
// matches, low enough to tolerate inflections ("regulations" for
// "regulation", "farmers" for "farmer").
const keywordMatchThreshold = 0.92

// followUpTheme pairs a keyword set with the templated follow-up it
// triggers. Themes are checked in declaration order; the first hit wins, so
// substitution is deterministic over a given history.
type followUpTheme struct {
	name     string
	keywords []string
	template string
}

var followUpThemes = []followUpTheme{
	{
		name:     "jobs_economy",
		keywords: []string{"jobs", "job", "economy", "economic", "employment", "wages", "workers"},
		template: "You both raised the economic stakes. Concretely, how many jobs does your position create or cost, and over what horizon?",
	},
	{
		name:     "agriculture",
		keywords: []string{"farm", "farmer", "farmers", "agriculture", "agricultural", "crops", "rural"},
		template: "Let's stay on the farm economy for a moment. What does your position mean for a mid-sized family operation next season?",
	},
	{
		name:     "regulation_freedom",
		keywords: []string{"regulation", "regulations", "regulatory", "freedom", "liberty", "mandate", "mandates"},
		template: "One of you framed this as regulation, the other as freedom. Where exactly is the line the government must not cross here?",
	},
	{
		name:     "long_term",
		keywords: []string{"future", "long-term", "decades", "decade", "generation", "generations", "sustainable"},
		template: "Both of you appealed to the long term. What will this look like twenty years out if your opponent's plan wins instead of yours?",
	},
}

// FollowUp scans the most recent participant turns for theme keywords and,
// on a hit, synthesizes a contextual follow-up question to substitute for
// the replacing agenda entry. The substitute inherits the replaced entry's
// category so phase progression is unaffected, and derives its id from the
// replaced entry's so the whole decision is a pure function of its inputs.
// ok is false when no keyword matched; the caller then uses the static
// entry unmodified.
func (g *Generator) FollowUp(history []transcript.Turn, replacing debate.Question) (debate.Question, bool) {
	tokens := recentParticipantTokens(history, followUpScanTurns)
	if len(tokens) == 0 {
		return debate.Question{}, false
	}

	for _, theme := range followUpThemes {
		if !matchesTheme(tokens, theme.keywords) {
			continue
		}
		g.logger.Debug("follow-up theme matched", "theme", theme.name)
		return debate.Question{
			ID:       fmt.Sprintf("%s-followup-%s", replacing.ID, theme.name),
			Text:     theme.template,
			Category: replacing.Category,
		}, true
	}
	return debate.Question{}, false
}

// recentParticipantTokens returns the lowercased word tokens of the last n
// participant turns. Moderator and user turns are skipped.
func recentParticipantTokens(history []transcript.Turn, n int) []string {
	var tokens []string
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < n; i-- {
		t := history[i]
		if t.Speaker != transcript.SpeakerParticipantA && t.Speaker != transcript.SpeakerParticipantB {
			continue
		}
		seen++
		for _, f := range strings.Fields(strings.ToLower(t.Content)) {
			tokens = append(tokens, strings.Trim(f, ".,;:!?\"'()[]"))
		}
	}
	return tokens
}

func matchesTheme(tokens, keywords []string) bool {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		for _, kw := range keywords {
			if tok == kw {
				return true
			}
			if matchr.JaroWinkler(tok, kw, false) >= keywordMatchThreshold {
				return true
			}
		}
	}
	return false
}
