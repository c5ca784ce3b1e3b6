// Package respond assembles generation requests for debate speakers and
// interprets the results into transcript turns.
//
// The Coordinator is the engine's only path to the generation backend for
// spoken content. It folds a stored personality profile (or a generic stand-
// in), retrieved source material, and an anti-repetition directive into the
// prompt, resolves citation markers in the output, and falls back to
// deterministic canned utterances whenever the backend fails. A debate never
// stalls on a degraded collaborator.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/podiumworks/rostrum/internal/citation"
	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/internal/observe"
	"github.com/podiumworks/rostrum/internal/persona"
	"github.com/podiumworks/rostrum/internal/transcript"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
	"github.com/podiumworks/rostrum/pkg/retrieval"
)

const (
	// DefaultTimeout bounds one generation call, fetches included.
	DefaultTimeout = 25 * time.Second

	// DefaultRetrievalK is how many context chunks are requested per turn.
	DefaultRetrievalK = 4

	// recentWindow is how many trailing turns are rendered into the prompt.
	recentWindow = 8
)

// Coordinator builds and executes generation requests for one debate.
// Implements debate.Responder. Safe for concurrent use.
type Coordinator struct {
	provider  llm.Provider
	retriever retrieval.Retriever
	profiles  persona.Store
	metrics   *observe.Metrics
	logger    *slog.Logger
	timeout   time.Duration
	k         int
}

// Option is a functional option for [New].
type Option func(*Coordinator)

// WithRetriever attaches the context-lookup backend. Without one, prompts
// carry no source material and turns carry no citations.
func WithRetriever(r retrieval.Retriever) Option {
	return func(c *Coordinator) { c.retriever = r }
}

// WithProfileStore attaches the personality store. Without one, every
// speaker gets the generic persona description.
func WithProfileStore(s persona.Store) Option {
	return func(c *Coordinator) { c.profiles = s }
}

// WithMetrics attaches metric instruments. A nil Metrics is valid.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTimeout bounds one generation call including fetches.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithRetrievalK sets how many context chunks are requested per turn.
func WithRetrievalK(k int) Option {
	return func(c *Coordinator) { c.k = k }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator over the given generation backend. A nil
// provider is valid; every turn then uses fallback content.
func New(provider llm.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider: provider,
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		k:        DefaultRetrievalK,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ debate.Responder = (*Coordinator)(nil)

// Respond produces one participant turn for the given request. Profile and
// context fetches run concurrently; both tolerate failure. The generation
// call falls back to a deterministic canned utterance on error or empty
// output, so Respond returns an error only when the caller's context is
// done.
func (c *Coordinator) Respond(ctx context.Context, req debate.ResponseRequest) (*transcript.Turn, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	profile, chunks := c.fetch(ctx, req.Participant, req.Question.Text)

	sys := c.systemPrompt(req, profile, chunks)
	user := c.userPrompt(req)

	content := c.generate(ctx, parent, sys, user)
	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if content == "" {
		content = fallbackUtterance(req, ownLines(req.History, req.Speaker))
	}

	citations := citation.Resolve(content, chunks)
	if dropped := len(citation.Markers(content)) - len(citations); dropped > 0 {
		c.logger.Debug("dropped unresolvable citation markers",
			"participant", req.Participant.ID,
			"dropped", dropped)
		c.metrics.RecordCitationsDropped(parent, dropped)
	}

	return &transcript.Turn{
		ID:        uuid.NewString(),
		Speaker:   req.Speaker,
		Content:   content,
		Citations: citations,
		Timestamp: time.Now(),
	}, nil
}

// Summarize produces the neutral closing-summary turn. Same degradation
// contract as Respond: backend failure lands on a deterministic template.
func (c *Coordinator) Summarize(ctx context.Context, topic string, history []transcript.Turn) (*transcript.Turn, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sys := "You are the impartial moderator of a formal policy debate. " +
		"Deliver a neutral closing summary: restate each side's strongest argument " +
		"without taking a position, then thank the participants. Three to five sentences."
	user := fmt.Sprintf("The debate topic was %q. Transcript:\n\n%s\n\nDeliver the closing summary.",
		topic, renderHistory(history, recentWindow*2))

	content := c.generate(ctx, parent, sys, user)
	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if content == "" {
		content = fmt.Sprintf("That concludes tonight's debate on %s. Both speakers laid out where they stand, where they differ, and what they would do about it. We thank them for a spirited exchange, and we thank you for listening. Good night.", topic)
	}

	return &transcript.Turn{
		ID:        uuid.NewString(),
		Speaker:   transcript.SpeakerModerator,
		Content:   content,
		Timestamp: time.Now(),
	}, nil
}

// fetch loads the profile and context chunks concurrently. Failures degrade
// to nil; neither collaborator may block a turn.
func (c *Coordinator) fetch(ctx context.Context, p debate.Participant, query string) (*persona.Profile, []retrieval.ContextChunk) {
	var (
		profile *persona.Profile
		chunks  []retrieval.ContextChunk
	)
	g, gctx := errgroup.WithContext(ctx)

	if c.profiles != nil {
		g.Go(func() error {
			ref := p.ProfileRef
			if ref == "" {
				ref = p.ID
			}
			got, err := c.profiles.GetProfile(gctx, ref)
			if err != nil {
				if !errors.Is(err, persona.ErrNotFound) {
					c.logger.Warn("profile fetch failed", "participant", p.ID, "error", err)
				}
				return nil
			}
			profile = got
			return nil
		})
	}
	if c.retriever != nil {
		g.Go(func() error {
			got, err := c.retriever.Retrieve(gctx, query, c.k)
			if err != nil {
				c.logger.Warn("context retrieval failed", "participant", p.ID, "error", err)
				return nil
			}
			chunks = got
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors
	return profile, chunks
}

// generate runs one completion, returning empty content on any failure so
// the caller falls back. parent distinguishes caller cancellation from the
// coordinator's own timeout.
func (c *Coordinator) generate(ctx, parent context.Context, system, user string) string {
	if c.provider == nil {
		return ""
	}
	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  0.8,
		MaxTokens:    512,
	})
	c.metrics.RecordGeneration(parent, time.Since(start))
	if err != nil {
		if parent.Err() == nil {
			c.logger.Warn("generation failed, using fallback", "error", err)
			c.metrics.RecordGenerationError(parent)
		}
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// systemPrompt folds persona, anti-repetition directive, and source material
// into the speaker's system prompt.
func (c *Coordinator) systemPrompt(req debate.ResponseRequest, profile *persona.Profile, chunks []retrieval.ContextChunk) string {
	var b strings.Builder

	b.WriteString(personaDescription(req.Participant, profile, req.Topic))

	b.WriteString("\n\nYou are on stage in a formal moderated debate on ")
	b.WriteString(fmt.Sprintf("%q", req.Topic))
	b.WriteString(". Stay in character, address the question directly, and keep your answer under 120 words.")

	if lines := ownLines(req.History, req.Speaker); len(lines) > 0 {
		b.WriteString("\n\nYou have already said the following; do not repeat these points or reuse their phrasing:\n")
		for _, l := range lines {
			b.WriteString("- ")
			b.WriteString(clip(l, 140))
			b.WriteString("\n")
		}
	}

	if len(chunks) > 0 {
		b.WriteString("\nSource material you may draw on. Cite a source inline by its number in brackets, e.g. [2]:\n")
		for i, ch := range chunks {
			b.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, ch.Publisher, clip(ch.Text, 280)))
		}
		b.WriteString("Only cite sources from this list.")
	}
	return b.String()
}

// userPrompt renders recent history and the question on the table.
func (c *Coordinator) userPrompt(req debate.ResponseRequest) string {
	var b strings.Builder
	if h := renderHistory(req.History, recentWindow); h != "" {
		b.WriteString("Recent exchange:\n\n")
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	if req.Question.Category == debate.CategoryUserInterjection {
		b.WriteString(fmt.Sprintf("An audience member asks: %q\n\n", req.Question.Text))
	} else {
		b.WriteString(fmt.Sprintf("The moderator asks: %q\n\n", req.Question.Text))
	}
	b.WriteString(fmt.Sprintf("Answer as %s.", req.Participant.Name))
	return b.String()
}

// personaDescription renders the stored profile, or the generic stand-in
// when none exists.
func personaDescription(p debate.Participant, profile *persona.Profile, topic string) string {
	if profile == nil {
		return fmt.Sprintf("You are %s, a %s representative taking part in a public debate. You are measured, factual, and persuasive, and you speak from your record.",
			p.Name, strings.TrimSpace(p.Chamber+" "+p.Affiliation))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (%s, %s).", profile.Name, profile.Chamber, profile.Affiliation)
	if profile.Background != "" {
		b.WriteString(" Background: ")
		b.WriteString(profile.Background)
	}
	if profile.Style != "" {
		b.WriteString(" Speaking style: ")
		b.WriteString(profile.Style)
	}
	if pos, ok := profile.Positions[strings.ToLower(topic)]; ok {
		b.WriteString(" Your stated position on tonight's topic: ")
		b.WriteString(pos)
	}
	return b.String()
}

// ownLines returns the speaker's own turn contents from history, oldest
// first, capped to the recent window.
func ownLines(history []transcript.Turn, speaker transcript.Speaker) []string {
	var lines []string
	for _, t := range history {
		if t.Speaker == speaker {
			lines = append(lines, t.Content)
		}
	}
	if len(lines) > recentWindow {
		lines = lines[len(lines)-recentWindow:]
	}
	return lines
}

// renderHistory formats the trailing n turns as a speaker-labelled block.
func renderHistory(history []transcript.Turn, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(speakerLabel(t.Speaker))
		b.WriteString(": ")
		b.WriteString(clip(t.Content, 300))
	}
	return b.String()
}

func speakerLabel(s transcript.Speaker) string {
	switch s {
	case transcript.SpeakerModerator:
		return "Moderator"
	case transcript.SpeakerParticipantA:
		return "Speaker A"
	case transcript.SpeakerParticipantB:
		return "Speaker B"
	case transcript.SpeakerUser:
		return "Audience"
	}
	return string(s)
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
