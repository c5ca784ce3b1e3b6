package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
	llmmock "github.com/podiumworks/rostrum/pkg/provider/llm/mock"
)

func assertAgendaShape(t *testing.T, qs []debate.Question, policyCount int) {
	t.Helper()
	want := []debate.QuestionCategory{debate.CategoryOpening}
	for i := 0; i < policyCount; i++ {
		want = append(want, debate.CategoryPolicy)
	}
	want = append(want, debate.CategoryRebuttal, debate.CategoryClosing)

	if len(qs) != len(want) {
		t.Fatalf("agenda length = %d, want %d", len(qs), len(want))
	}
	for i, q := range qs {
		if q.Category != want[i] {
			t.Errorf("questions[%d].Category = %q, want %q", i, q.Category, want[i])
		}
		if q.ID == "" || q.Text == "" {
			t.Errorf("questions[%d] missing id or text: %+v", i, q)
		}
	}
}

func TestGenerateAgendaNilProviderUsesTemplate(t *testing.T) {
	t.Parallel()

	fallbacks := 0
	g := New(nil, WithFallbackHook(func() { fallbacks++ }))
	qs := g.GenerateAgenda(context.Background(), "water rights")

	assertAgendaShape(t, qs, DefaultPolicyQuestions)
	if fallbacks != 1 {
		t.Errorf("fallback hook fired %d times, want 1", fallbacks)
	}
	for i, q := range qs {
		if !strings.Contains(q.Text, "water rights") {
			t.Errorf("questions[%d] does not mention the topic: %q", i, q.Text)
		}
	}
}

func TestGenerateAgendaFallsBackOnProviderError(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	fallbacks := 0
	g := New(provider, WithFallbackHook(func() { fallbacks++ }))

	qs := g.GenerateAgenda(context.Background(), "grid modernization")
	assertAgendaShape(t, qs, DefaultPolicyQuestions)
	if fallbacks != 1 {
		t.Errorf("fallback hook fired %d times, want 1", fallbacks)
	}
	if len(provider.CompleteCalls) != 1 {
		t.Errorf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
}

func TestGenerateAgendaFallsBackOnMalformedOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "I cannot produce an agenda."},
		{name: "too few entries", content: `[{"question":"only one?","context":"","category":"opening"}]`},
		{
			name: "wrong category order",
			content: `[
				{"question":"a","context":"","category":"closing"},
				{"question":"b","context":"","category":"policy"},
				{"question":"c","context":"","category":"policy"},
				{"question":"d","context":"","category":"rebuttal"},
				{"question":"e","context":"","category":"opening"}]`,
		},
		{
			name: "unknown category dropped below minimum",
			content: `[
				{"question":"a","context":"","category":"opening"},
				{"question":"b","context":"","category":"policy"},
				{"question":"c","context":"","category":"icebreaker"},
				{"question":"d","context":"","category":"rebuttal"},
				{"question":"e","context":"","category":"closing"}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tt.content},
			}
			g := New(provider)
			qs := g.GenerateAgenda(context.Background(), "rail subsidies")
			assertAgendaShape(t, qs, DefaultPolicyQuestions)
		})
	}
}

func TestGenerateAgendaUsesStructuredOutput(t *testing.T) {
	t.Parallel()

	items := []agendaItem{
		{Question: "Opening statements, please.", Category: "opening"},
		{Question: "How do you fund it?", Category: "policy"},
		{Question: "Who loses?", Category: "policy"},
		{Question: "Why is your opponent wrong?", Category: "rebuttal"},
		{Question: "Closing statements.", Category: "closing"},
	}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: string(raw)},
	}

	fallbacks := 0
	g := New(provider, WithFallbackHook(func() { fallbacks++ }))
	qs := g.GenerateAgenda(context.Background(), "rail subsidies")

	assertAgendaShape(t, qs, 2)
	if fallbacks != 0 {
		t.Errorf("fallback hook fired %d times for a valid generation, want 0", fallbacks)
	}
	for i, q := range qs {
		if q.Text != items[i].Question {
			t.Errorf("questions[%d].Text = %q, want %q", i, q.Text, items[i].Question)
		}
	}
	if req := provider.CompleteCalls[0].Req; !req.ForceJSON {
		t.Error("generation request did not force JSON output")
	}
}

func TestWithPolicyQuestionsClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want int
	}{
		{in: 0, want: 2},
		{in: 2, want: 2},
		{in: 3, want: 3},
		{in: 9, want: 3},
	}
	for _, tt := range tests {
		g := New(nil, WithPolicyQuestions(tt.in))
		qs := g.GenerateAgenda(context.Background(), "port dredging")
		assertAgendaShape(t, qs, tt.want)
	}
}
