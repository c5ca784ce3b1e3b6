package respond

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/internal/persona"
	"github.com/podiumworks/rostrum/internal/transcript"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
	llmmock "github.com/podiumworks/rostrum/pkg/provider/llm/mock"
	"github.com/podiumworks/rostrum/pkg/retrieval"
	retrievalmock "github.com/podiumworks/rostrum/pkg/retrieval/mock"
)

func testRequest() debate.ResponseRequest {
	return debate.ResponseRequest{
		Topic:   "infrastructure spending",
		Speaker: transcript.SpeakerParticipantA,
		Participant: debate.Participant{
			ID:      "p-a",
			Name:    "Alex Varga",
			Chamber: "senate",
		},
		Question: debate.Question{
			ID:       "q1",
			Text:     "Where do you stand?",
			Category: debate.CategoryOpening,
		},
	}
}

func TestRespondReturnsBackendContent(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I stand for investment."},
	}
	c := New(provider)

	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if turn.Speaker != transcript.SpeakerParticipantA {
		t.Errorf("turn speaker = %q, want participant A", turn.Speaker)
	}
	if turn.Content != "I stand for investment." {
		t.Errorf("turn content = %q, want backend output", turn.Content)
	}
	if turn.ID == "" || turn.Timestamp.IsZero() {
		t.Error("turn missing id or timestamp")
	}
}

func TestRespondFallsBackOnBackendError(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	c := New(provider)

	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if turn.Content == "" {
		t.Fatal("fallback produced empty content")
	}
	if !strings.Contains(turn.Content, `"Where do you stand?"`) {
		t.Errorf("fallback %q does not carry the question", turn.Content)
	}
}

func TestRespondNilProviderUsesFallback(t *testing.T) {
	t.Parallel()

	c := New(nil)
	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if turn.Content == "" {
		t.Fatal("fallback produced empty content")
	}
}

func TestRespondErrorsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	provider := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	c := New(provider)

	if _, err := c.Respond(ctx, testRequest()); !errors.Is(err, context.Canceled) {
		t.Errorf("Respond() error = %v, want context.Canceled", err)
	}
}

func TestRespondResolvesCitations(t *testing.T) {
	t.Parallel()

	chunks := []retrieval.ContextChunk{
		{Text: "Federal outlays rose 12% last year.", SourceURL: "https://example.org/a", Publisher: "Budget Office"},
		{Text: "Bridge inspections lag by a decade.", SourceURL: "https://example.org/b", Publisher: "Transit Weekly"},
	}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Spending rose [1] while inspections lagged [2]. As I said [1], it rose."},
	}
	retriever := &retrievalmock.Retriever{Chunks: chunks}
	c := New(provider, WithRetriever(retriever))

	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if len(turn.Citations) != 2 {
		t.Fatalf("citation count = %d, want 2 (repeat marker deduplicated)", len(turn.Citations))
	}
	if turn.Citations[0].SourceURL != chunks[0].SourceURL || turn.Citations[1].SourceURL != chunks[1].SourceURL {
		t.Errorf("citations = %+v, want sources in marker order", turn.Citations)
	}

	if len(retriever.RetrieveCalls) != 1 {
		t.Fatalf("retriever called %d times, want 1", len(retriever.RetrieveCalls))
	}
	if call := retriever.RetrieveCalls[0]; call.Query != "Where do you stand?" || call.K != DefaultRetrievalK {
		t.Errorf("Retrieve(%q, %d), want question text with default k", call.Query, call.K)
	}
}

func TestRespondDropsOutOfRangeMarkers(t *testing.T) {
	t.Parallel()

	chunks := []retrieval.ContextChunk{
		{Text: "chunk one", SourceURL: "https://example.org/a", Publisher: "A"},
		{Text: "chunk two", SourceURL: "https://example.org/b", Publisher: "B"},
	}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "True per [1] and allegedly per [3]."},
	}
	c := New(provider, WithRetriever(&retrievalmock.Retriever{Chunks: chunks}))

	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if len(turn.Citations) != 1 {
		t.Fatalf("citation count = %d, want 1 (marker [3] has no source)", len(turn.Citations))
	}
	if turn.Citations[0].Marker != 1 {
		t.Errorf("surviving citation marker = %d, want 1", turn.Citations[0].Marker)
	}
}

func TestRespondToleratesRetrieverFailure(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "No sources needed."},
	}
	c := New(provider, WithRetriever(&retrievalmock.Retriever{Err: errors.New("index offline")}))

	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if turn.Content != "No sources needed." || len(turn.Citations) != 0 {
		t.Errorf("turn = %q with %d citations, want backend content and none", turn.Content, len(turn.Citations))
	}
}

func TestRespondPromptCarriesProfile(t *testing.T) {
	t.Parallel()

	store := persona.NewMemStore()
	err := store.PutProfile(context.Background(), &persona.Profile{
		ParticipantID: "p-a",
		Name:          "Alex Varga",
		Chamber:       "senate",
		Affiliation:   "independent",
		Background:    "Twelve years on the transport committee.",
		Style:         "Short declarative sentences.",
		Positions:     map[string]string{"infrastructure spending": "favours a federal repair fund"},
	})
	if err != nil {
		t.Fatalf("PutProfile() error: %v", err)
	}

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}
	c := New(provider, WithProfileStore(store))

	if _, err := c.Respond(context.Background(), testRequest()); err != nil {
		t.Fatalf("Respond() error: %v", err)
	}

	sys := provider.CompleteCalls[0].Req.SystemPrompt
	for _, want := range []string{
		"Twelve years on the transport committee.",
		"Short declarative sentences.",
		"favours a federal repair fund",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestRespondGenericPersonaWithoutProfile(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}
	c := New(provider, WithProfileStore(persona.NewMemStore()))

	if _, err := c.Respond(context.Background(), testRequest()); err != nil {
		t.Fatalf("Respond() error: %v", err)
	}

	sys := provider.CompleteCalls[0].Req.SystemPrompt
	if !strings.Contains(sys, "You are Alex Varga") || !strings.Contains(sys, "senate") {
		t.Errorf("generic persona missing name or chamber:\n%s", sys)
	}
}

func TestRespondPromptCarriesAntiRepetition(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}
	c := New(provider)

	req := testRequest()
	req.History = []transcript.Turn{
		{Speaker: transcript.SpeakerParticipantA, Content: "Roads before railways, every time."},
		{Speaker: transcript.SpeakerParticipantB, Content: "Railways move more people."},
	}
	if _, err := c.Respond(context.Background(), req); err != nil {
		t.Fatalf("Respond() error: %v", err)
	}

	sys := provider.CompleteCalls[0].Req.SystemPrompt
	if !strings.Contains(sys, "Roads before railways, every time.") {
		t.Error("system prompt missing the speaker's own prior line")
	}
	if strings.Contains(sys, "Railways move more people.") {
		t.Error("anti-repetition list leaked the opponent's line")
	}
}

func TestFallbackAvoidsRepeatingItself(t *testing.T) {
	t.Parallel()

	c := New(nil)
	req := testRequest()

	first, err := c.Respond(context.Background(), req)
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	req.History = append(req.History, *first)

	second, err := c.Respond(context.Background(), req)
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if second.Content == first.Content {
		t.Errorf("consecutive fallbacks identical: %q", first.Content)
	}
}

func TestSummarizeUsesBackend(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "A spirited exchange. Good night."},
	}
	c := New(provider)

	turn, err := c.Summarize(context.Background(), "infrastructure spending", nil)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if turn.Speaker != transcript.SpeakerModerator {
		t.Errorf("summary speaker = %q, want moderator", turn.Speaker)
	}
	if turn.Content != "A spirited exchange. Good night." {
		t.Errorf("summary content = %q, want backend output", turn.Content)
	}
}

func TestSummarizeFallsBackOnError(t *testing.T) {
	t.Parallel()

	c := New(&llmmock.Provider{CompleteErr: errors.New("backend down")})

	turn, err := c.Summarize(context.Background(), "infrastructure spending", nil)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if !strings.Contains(turn.Content, "infrastructure spending") {
		t.Errorf("fallback summary %q does not name the topic", turn.Content)
	}
}

func TestWithTimeoutBoundsGeneration(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := New(provider, WithTimeout(20*time.Millisecond))

	start := time.Now()
	turn, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Respond() took %v, timeout did not bound the call", elapsed)
	}
	if turn.Content == "" {
		t.Error("timed-out generation did not fall back")
	}
}
