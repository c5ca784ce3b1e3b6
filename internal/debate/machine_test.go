package debate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/podiumworks/rostrum/internal/debate/rotation"
	"github.com/podiumworks/rostrum/internal/debate/scheduler"
	"github.com/podiumworks/rostrum/internal/transcript"
)

// stubResponder satisfies Responder with canned content. OnRespond, when
// set, runs before the turn is returned: tests use it to interleave state
// transitions with an in-flight collaborator call.
type stubResponder struct {
	mu        sync.Mutex
	respondN  int
	OnRespond func(req ResponseRequest)
	Err       error
}

func (s *stubResponder) Respond(_ context.Context, req ResponseRequest) (*transcript.Turn, error) {
	s.mu.Lock()
	s.respondN++
	n := s.respondN
	s.mu.Unlock()
	if s.OnRespond != nil {
		s.OnRespond(req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &transcript.Turn{
		Speaker: req.Speaker,
		Content: fmt.Sprintf("response %d to %s", n, req.Question.ID),
	}, nil
}

func (s *stubResponder) Summarize(context.Context, string, []transcript.Turn) (*transcript.Turn, error) {
	return &transcript.Turn{
		Speaker: transcript.SpeakerModerator,
		Content: "closing summary",
	}, nil
}

// stubAgenda serves a fixed five-question agenda. Substitute, when set, is
// returned by FollowUp.
type stubAgenda struct {
	Substitute *Question
}

func (s *stubAgenda) GenerateAgenda(_ context.Context, topic string) []Question {
	cats := []QuestionCategory{
		CategoryOpening, CategoryPolicy, CategoryPolicy, CategoryRebuttal, CategoryClosing,
	}
	qs := make([]Question, len(cats))
	for i, c := range cats {
		qs[i] = Question{
			ID:       fmt.Sprintf("q%d", i+1),
			Text:     fmt.Sprintf("question %d on %s", i+1, topic),
			Category: c,
		}
	}
	return qs
}

func (s *stubAgenda) FollowUp(_ []transcript.Turn, replacing Question) (Question, bool) {
	if s.Substitute == nil {
		return Question{}, false
	}
	q := *s.Substitute
	q.Category = replacing.Category
	return q, true
}

func validParticipants() (Participant, Participant) {
	a := Participant{ID: "p-a", Name: "Alex Varga", Chamber: "senate"}
	b := Participant{ID: "p-b", Name: "Dana Reyes", Chamber: "house"}
	return a, b
}

// newTestMachine builds a machine with the fixed cycle policy (no follow-up
// exchanges) so turn order is fully deterministic.
func newTestMachine(t *testing.T, opts ...MachineOption) *Machine {
	t.Helper()
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	return NewMachine(&stubResponder{}, &stubAgenda{}, policy, opts...)
}

func mustInitStart(t *testing.T, m *Machine) {
	t.Helper()
	a, b := validParticipants()
	if err := m.Initialize(a, b, "infrastructure spending"); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
}

func TestInitializeValidatesParticipants(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	a, b := validParticipants()

	tests := []struct {
		name string
		a, b Participant
	}{
		{name: "missing id", a: Participant{Name: "X", Chamber: "senate"}, b: b},
		{name: "missing name", a: a, b: Participant{ID: "x", Chamber: "house"}},
		{name: "missing chamber", a: a, b: Participant{ID: "x", Name: "X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Initialize(tt.a, tt.b, "topic"); !errors.Is(err, ErrInvalidParticipants) {
				t.Errorf("Initialize() error = %v, want ErrInvalidParticipants", err)
			}
		})
	}
}

func TestStartRequiresInitialize(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	if err := m.Start(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start() error = %v, want ErrNotInitialized", err)
	}
}

func TestStartGeneratesAgenda(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)

	s := m.Snapshot()
	if !s.Running || s.Paused {
		t.Errorf("after Start: running=%v paused=%v, want running unpaused", s.Running, s.Paused)
	}
	if len(s.Agenda) != 5 {
		t.Fatalf("agenda length = %d, want 5", len(s.Agenda))
	}
	wantCats := []QuestionCategory{
		CategoryOpening, CategoryPolicy, CategoryPolicy, CategoryRebuttal, CategoryClosing,
	}
	for i, q := range s.Agenda {
		if q.Category != wantCats[i] {
			t.Errorf("agenda[%d].Category = %q, want %q", i, q.Category, wantCats[i])
		}
	}
}

func TestPausePreconditions(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	if err := m.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Pause() before Start error = %v, want ErrNotRunning", err)
	}

	mustInitStart(t, m)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Errorf("second Pause() error = %v, want idempotent nil", err)
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)
	if err := m.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume() while running error = %v, want ErrNotPaused", err)
	}
}

func TestPauseResumeLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)

	// Consume one agenda question so the cursor is non-trivial.
	if _, _, err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	before := m.Snapshot()
	beforeTurns := m.History()

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	after := m.Snapshot()
	if after.AgendaCursor != before.AgendaCursor {
		t.Errorf("agenda cursor = %d after pause/resume, want %d", after.AgendaCursor, before.AgendaCursor)
	}
	if got := m.History(); len(got) != len(beforeTurns) {
		t.Errorf("history length = %d after pause/resume, want %d", len(got), len(beforeTurns))
	}
}

func TestInterjectRequiresPause(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)

	if _, err := m.Interject(context.Background(), "what about rural bridges?"); !errors.Is(err, ErrMustBePaused) {
		t.Errorf("Interject() while running error = %v, want ErrMustBePaused", err)
	}
	if got := len(m.History()); got != 0 {
		t.Errorf("history length = %d after rejected interjection, want 0", got)
	}
}

func TestInterjectAppendsUserAndBothResponses(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	responses, err := m.Interject(context.Background(), "what about rural bridges?")
	if err != nil {
		t.Fatalf("Interject() error: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("Interject() returned %d turns, want 2", len(responses))
	}

	history := m.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	wantSpeakers := []transcript.Speaker{
		transcript.SpeakerUser,
		transcript.SpeakerParticipantA,
		transcript.SpeakerParticipantB,
	}
	qid := history[0].QuestionID
	if qid == "" {
		t.Fatal("user turn has empty question id")
	}
	for i, turn := range history {
		if turn.Speaker != wantSpeakers[i] {
			t.Errorf("history[%d].Speaker = %q, want %q", i, turn.Speaker, wantSpeakers[i])
		}
		if turn.QuestionID != qid {
			t.Errorf("history[%d].QuestionID = %q, want shared id %q", i, turn.QuestionID, qid)
		}
		if !turn.PausedAtCreation {
			t.Errorf("history[%d].PausedAtCreation = false, want true", i)
		}
	}

	s := m.Snapshot()
	if !s.Paused {
		t.Error("session resumed itself after Interject; must stay paused")
	}
	if s.Mode != ModeUserQuestions {
		t.Errorf("mode = %q after Interject, want %q", s.Mode, ModeUserQuestions)
	}
}

func TestAdvanceEndToEnd(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)

	ctx := context.Background()
	var last *transcript.Turn
	done := false
	for i := 0; i < 100 && !done; i++ {
		turn, d, err := m.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
		if turn == nil {
			t.Fatal("Advance() returned no turn while running unpaused")
		}
		last, done = turn, d
	}
	if !done {
		t.Fatal("session never ended")
	}

	history := m.History()
	if history[0].Speaker != transcript.SpeakerModerator {
		t.Errorf("first turn speaker = %q, want moderator", history[0].Speaker)
	}
	if last.Speaker != transcript.SpeakerModerator || last.Content != "closing summary" {
		t.Errorf("last turn = %q by %q, want closing summary by moderator", last.Content, last.Speaker)
	}

	s := m.Snapshot()
	if s.Mode != ModeClosing {
		t.Errorf("final mode = %q, want %q", s.Mode, ModeClosing)
	}
	if s.Running {
		t.Error("running = true after closing summary")
	}

	// With follow-ups disabled each of the 5 questions gets moderator, A,
	// then B, plus the closing summary.
	if want := 16; len(history) != want {
		t.Errorf("history length = %d, want %d", len(history), want)
	}

	if _, _, err := m.Advance(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Advance() after end error = %v, want ErrNotRunning", err)
	}
}

func TestAdvancePausedIsNoop(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	turn, done, err := m.Advance(context.Background())
	if err != nil || done || turn != nil {
		t.Errorf("Advance() while paused = (%v, %v, %v), want (nil, false, nil)", turn, done, err)
	}
	if got := len(m.History()); got != 0 {
		t.Errorf("history length = %d after paused advance, want 0", got)
	}
}

func TestAdvanceDiscardsResultAfterMidFlightPause(t *testing.T) {
	t.Parallel()

	responder := &stubResponder{}
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	m := NewMachine(responder, &stubAgenda{}, policy)
	responder.OnRespond = func(ResponseRequest) {
		// Pause lands while the generation call is in flight; the result
		// must not reach the transcript.
		if err := m.Pause(); err != nil {
			t.Errorf("mid-flight Pause() error: %v", err)
		}
	}
	mustInitStart(t, m)

	ctx := context.Background()
	if _, _, err := m.Advance(ctx); err != nil { // moderator, no collaborator
		t.Fatalf("Advance() error: %v", err)
	}

	turn, done, err := m.Advance(ctx) // participant A, pauses mid-flight
	if err != nil || done {
		t.Fatalf("Advance() = (_, %v, %v), want no error, not done", done, err)
	}
	if turn != nil {
		t.Errorf("Advance() returned stale turn %q, want discarded nil", turn.Content)
	}
	if got := len(m.History()); got != 1 {
		t.Errorf("history length = %d, want 1 (stale participant turn discarded)", got)
	}
}

func TestAdvanceSubstitutesFollowUp(t *testing.T) {
	t.Parallel()

	agenda := &stubAgenda{Substitute: &Question{ID: "fu-1", Text: "follow-up question"}}
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	m := NewMachine(&stubResponder{}, agenda, policy)
	mustInitStart(t, m)

	ctx := context.Background()
	var moderatorTurns []transcript.Turn
	for len(moderatorTurns) < 4 {
		turn, _, err := m.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
		if turn.Speaker == transcript.SpeakerModerator {
			moderatorTurns = append(moderatorTurns, *turn)
		}
	}

	// Questions 1 to 3 come from the agenda untouched; question 4 is
	// eligible for substitution.
	for i := 0; i < 3; i++ {
		if moderatorTurns[i].QuestionID != fmt.Sprintf("q%d", i+1) {
			t.Errorf("moderator turn %d question = %q, want q%d", i, moderatorTurns[i].QuestionID, i+1)
		}
	}
	if moderatorTurns[3].QuestionID != "fu-1" || moderatorTurns[3].Content != "follow-up question" {
		t.Errorf("fourth moderator turn = %q (%s), want substituted follow-up",
			moderatorTurns[3].Content, moderatorTurns[3].QuestionID)
	}

	// The substitute inherited the replaced rebuttal slot's category.
	if got := m.Snapshot().Mode; got != ModeRebuttal {
		t.Errorf("mode = %q after substituted question, want %q", got, ModeRebuttal)
	}
}

func TestResetReturnsToEmptySetup(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	mustInitStart(t, m)
	for i := 0; i < 4; i++ {
		if _, _, err := m.Advance(context.Background()); err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
	}

	m.Reset()

	s := m.Snapshot()
	want := Session{ID: m.ID(), Mode: ModeSetup}
	if s.Topic != want.Topic || s.Mode != want.Mode || s.Running || s.Paused ||
		s.AgendaCursor != 0 || len(s.Agenda) != 0 ||
		s.ParticipantA != (Participant{}) || s.ParticipantB != (Participant{}) {
		t.Errorf("Snapshot() after Reset = %+v, want empty setup session", s)
	}
	if got := len(m.History()); got != 0 {
		t.Errorf("history length = %d after Reset, want 0", got)
	}
}

func TestTurnListenerObservesAppends(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []transcript.Speaker
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	m := NewMachine(&stubResponder{}, &stubAgenda{}, policy,
		WithTurnListener(func(t transcript.Turn) {
			mu.Lock()
			seen = append(seen, t.Speaker)
			mu.Unlock()
		}))
	mustInitStart(t, m)

	for i := 0; i < 3; i++ {
		if _, _, err := m.Advance(context.Background()); err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []transcript.Speaker{
		transcript.SpeakerModerator,
		transcript.SpeakerParticipantA,
		transcript.SpeakerParticipantB,
	}
	if len(seen) != len(want) {
		t.Fatalf("listener saw %d turns, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("listener turn %d speaker = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestScheduledSessionRunsToCompletion(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	ticker := scheduler.New(rng, scheduler.WithDelayBounds(time.Millisecond, 2*time.Millisecond))
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	m := NewMachine(&stubResponder{}, &stubAgenda{}, policy, WithTicker(ticker))
	mustInitStart(t, m)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := m.Snapshot(); !s.Running {
			if got := len(m.History()); got != 16 {
				t.Errorf("history length = %d at completion, want 16", got)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduled session did not finish in time")
}

func TestPauseStopsScheduledTicks(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	ticker := scheduler.New(rng, scheduler.WithDelayBounds(10*time.Millisecond, 15*time.Millisecond))
	policy := rotation.New(rand.New(rand.NewSource(1)), rotation.WithFollowUpProbability(0))
	m := NewMachine(&stubResponder{}, &stubAgenda{}, policy, WithTicker(ticker))
	mustInitStart(t, m)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	before := len(m.History())
	time.Sleep(80 * time.Millisecond)
	if got := len(m.History()); got != before {
		t.Errorf("history grew from %d to %d while paused", before, got)
	}
}
