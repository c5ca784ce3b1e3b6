// Package agenda builds the ordered moderator question sequence for a
// debate topic.
//
// The primary path asks the generation backend for a structured JSON agenda;
// any backend error or malformed output falls back to a deterministic
// template parameterized only by the topic. The fallback has no external
// dependency and cannot fail, so Start never blocks on agenda generation.
package agenda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
)

const (
	// DefaultPolicyQuestions is how many policy_discussion questions an
	// agenda carries between the opening and the rebuttal.
	DefaultPolicyQuestions = 2

	// DefaultTimeout bounds the structured-generation call before the
	// fallback takes over.
	DefaultTimeout = 20 * time.Second
)

const systemPrompt = `You are the producer of a formal televised policy debate. You design the moderator's question agenda.`

// Generator produces debate agendas. Safe for concurrent use.
type Generator struct {
	provider        llm.Provider
	logger          *slog.Logger
	policyQuestions int
	timeout         time.Duration
	onFallback      func()
}

// Option is a functional option for [New].
type Option func(*Generator)

// WithPolicyQuestions sets how many policy questions the agenda carries.
// Values are clamped to [2, 3] to keep the agenda within five to seven
// entries.
func WithPolicyQuestions(n int) Option {
	return func(g *Generator) {
		if n < 2 {
			n = 2
		}
		if n > 3 {
			n = 3
		}
		g.policyQuestions = n
	}
}

// WithTimeout bounds the generation call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithFallbackHook registers a callback invoked each time agenda generation
// falls back to the static template. Used for metrics.
func WithFallbackHook(fn func()) Option {
	return func(g *Generator) { g.onFallback = fn }
}

// New creates a Generator. A nil provider skips the generation path and
// always uses the static template.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:        provider,
		logger:          slog.Default(),
		policyQuestions: DefaultPolicyQuestions,
		timeout:         DefaultTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// agendaItem is the structured-output contract for one generated question.
type agendaItem struct {
	Question string `json:"question"`
	Context  string `json:"context"`
	Category string `json:"category"`
}

// GenerateAgenda returns the ordered question sequence for topic: one
// opening, two or three policy questions, one rebuttal, one closing. It
// never fails; every error path lands on the static template.
func (g *Generator) GenerateAgenda(ctx context.Context, topic string) []debate.Question {
	if g.provider != nil {
		if qs, err := g.generate(ctx, topic); err == nil {
			return qs
		} else {
			g.logger.Warn("agenda generation failed, using static template",
				"topic", topic,
				"error", err)
		}
	}
	if g.onFallback != nil {
		g.onFallback()
	}
	return g.staticAgenda(topic)
}

func (g *Generator) generate(ctx context.Context, topic string) ([]debate.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Write the moderator agenda for a debate on the topic %q.

Produce a JSON array of exactly %d objects, each with keys "question",
"context", and "category". Categories, in this exact order: one "opening",
%d "policy", one "rebuttal", one "closing". Questions must be addressed to
both debaters and be answerable in under a minute.`,
		topic, g.policyQuestions+3, g.policyQuestions)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0.7,
		MaxTokens:    1024,
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("agenda: complete: %w", err)
	}

	var items []agendaItem
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &items); err != nil {
		return nil, fmt.Errorf("agenda: parse structured output: %w", err)
	}

	questions := make([]debate.Question, 0, len(items))
	for _, it := range items {
		cat := debate.QuestionCategory(it.Category)
		if it.Question == "" || !cat.IsValid() || cat == debate.CategoryUserInterjection {
			// Drop the malformed entry; the order check below decides
			// whether what remains is still a usable agenda.
			continue
		}
		questions = append(questions, debate.Question{
			ID:       uuid.NewString(),
			Text:     it.Question,
			Category: cat,
		})
	}
	if err := validateOrder(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// validateOrder enforces the fixed category shape: opening, policy x2-3,
// rebuttal, closing.
func validateOrder(qs []debate.Question) error {
	if len(qs) < 5 || len(qs) > 7 {
		return fmt.Errorf("agenda: %d questions outside [5, 7]", len(qs))
	}
	want := make([]debate.QuestionCategory, 0, len(qs))
	want = append(want, debate.CategoryOpening)
	for i := 0; i < len(qs)-3; i++ {
		want = append(want, debate.CategoryPolicy)
	}
	want = append(want, debate.CategoryRebuttal, debate.CategoryClosing)
	for i, q := range qs {
		if q.Category != want[i] {
			return fmt.Errorf("agenda: question %d has category %q, want %q", i, q.Category, want[i])
		}
	}
	return nil
}

// staticAgenda is the deterministic fallback template.
func (g *Generator) staticAgenda(topic string) []debate.Question {
	policy := []string{
		fmt.Sprintf("What specific measures on %s would you enact in your first year, and how would you pay for them?", topic),
		fmt.Sprintf("Who stands to lose under your approach to %s, and what do you say to them?", topic),
		fmt.Sprintf("Which existing policy on %s would you repeal first, and why?", topic),
	}

	qs := []debate.Question{{
		ID:       uuid.NewString(),
		Text:     fmt.Sprintf("Welcome to tonight's debate on %s. Please give your opening statement: where do you stand, and why?", topic),
		Category: debate.CategoryOpening,
	}}
	for i := 0; i < g.policyQuestions; i++ {
		qs = append(qs, debate.Question{
			ID:       uuid.NewString(),
			Text:     policy[i],
			Category: debate.CategoryPolicy,
		})
	}
	qs = append(qs,
		debate.Question{
			ID:       uuid.NewString(),
			Text:     fmt.Sprintf("You have now heard your opponent's position on %s. Respond to it directly: where are they wrong?", topic),
			Category: debate.CategoryRebuttal,
		},
		debate.Question{
			ID:       uuid.NewString(),
			Text:     fmt.Sprintf("Please give your closing statement on %s.", topic),
			Category: debate.CategoryClosing,
		},
	)
	return qs
}
