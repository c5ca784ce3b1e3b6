package respond

import (
	"fmt"

	"github.com/antzucaro/matchr"

	"github.com/podiumworks/rostrum/internal/debate"
)

// fallbackTemplates are the canned utterances used when the generation
// backend fails. Each takes the speaker name and the question text.
var fallbackTemplates = []string{
	"Let me be direct about this. The question is %[2]q, and my answer has not changed: the people I represent expect results, and that is exactly what my approach delivers.",
	"I hear the question — %[2]q — and I will answer it plainly. My record speaks for itself here, and I will stand on that record every day of the week.",
	"That is the right question to ask. On %[2]q, I would say this: we cannot afford half measures, and I am the one on this stage offering a complete plan.",
	"My opponent and I see this very differently. When you ask %[2]q, I think of the families this actually affects, and they are who I answer to.",
	"As %[1]s, I have faced this issue up close. To the question %[2]q, my position is clear, it is consistent, and it has not wavered under pressure.",
}

// fallbackUtterance deterministically picks the canned line least similar to
// anything the speaker has already said, so even degraded output respects
// the anti-repetition rule. Same request and history always pick the same
// template.
func fallbackUtterance(req debate.ResponseRequest, ownLines []string) string {
	best := 0
	bestScore := 2.0 // above any possible Jaro-Winkler score
	for i, tpl := range fallbackTemplates {
		rendered := fmt.Sprintf(tpl, req.Participant.Name, req.Question.Text)
		score := 0.0
		for _, line := range ownLines {
			if s := matchr.JaroWinkler(rendered, line, false); s > score {
				score = s
			}
		}
		if score < bestScore {
			bestScore = score
			best = i
		}
	}
	return fmt.Sprintf(fallbackTemplates[best], req.Participant.Name, req.Question.Text)
}
