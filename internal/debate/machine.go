package debate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podiumworks/rostrum/internal/observe"
	"github.com/podiumworks/rostrum/internal/transcript"
)

// ResponseRequest carries everything a [Responder] needs to produce one
// participant turn.
type ResponseRequest struct {
	Topic       string
	Speaker     transcript.Speaker
	Participant Participant
	Question    Question

	// History is a snapshot of the transcript at request time. The
	// responder must treat it as read-only.
	History []transcript.Turn
}

// Responder turns a request into a spoken turn. Implementations must absorb
// generation failures with deterministic fallback content and return an
// error only when ctx is done; a debate proceeds even when every external
// service is degraded.
type Responder interface {
	Respond(ctx context.Context, req ResponseRequest) (*transcript.Turn, error)

	// Summarize produces the neutral closing-summary turn. Same error
	// contract as Respond.
	Summarize(ctx context.Context, topic string, history []transcript.Turn) (*transcript.Turn, error)
}

// AgendaSource builds the moderator question sequence for a topic.
type AgendaSource interface {
	// GenerateAgenda returns 5 to 7 questions in fixed category order
	// (opening, policy, rebuttal, closing). It cannot fail: on collaborator
	// error it falls back to a deterministic template.
	GenerateAgenda(ctx context.Context, topic string) []Question

	// FollowUp optionally synthesizes a contextual follow-up to substitute
	// for the replacing agenda entry, based on recent participant turns.
	// Deterministic given the same history. ok is false when no keyword
	// matched and the static entry should be used unmodified.
	FollowUp(history []transcript.Turn, replacing Question) (q Question, ok bool)
}

// SpeakerPolicy decides who speaks next given turn history.
// Satisfied by rotation.Policy.
type SpeakerPolicy interface {
	NextSpeaker(history []transcript.Turn) transcript.Speaker
}

// TickSource schedules single future invocations of a callback and supports
// revoking the pending one. Satisfied by scheduler.Scheduler.
type TickSource interface {
	Arm(fn func())
	Cancel()
}

// followUpEligibleAfter is how many agenda questions must be consumed before
// the machine starts offering follow-up substitution to the agenda source.
const followUpEligibleAfter = 3

// Machine is the per-session debate state machine. It owns the session's
// phase, pause flag, agenda cursor, participant bindings, and transcript,
// and exposes the full transition API.
//
// All public methods are safe for concurrent use: the session mutex
// serialises the scheduled Advance path against Pause, Resume, Interject,
// and Reset. Collaborator calls made by Advance run outside the mutex; an
// epoch counter, bumped by Initialize, Pause, and Reset, lets Advance detect
// that the session changed underneath an in-flight call and discard the
// stale result instead of appending it.
type Machine struct {
	responder Responder
	agenda    AgendaSource
	policy    SpeakerPolicy
	ticker    TickSource
	listener  func(transcript.Turn)
	logger    *slog.Logger
	metrics   *observe.Metrics
	now       func() time.Time

	// id is assigned once at construction and survives Initialize and
	// Reset.
	id string

	mu      sync.Mutex
	epoch   uint64
	session Session
	log     *transcript.Log

	// tickCtx is the context scheduled advances run under, captured by
	// Start so background ticks inherit the caller's cancellation.
	tickCtx context.Context
}

// MachineOption is a functional option for [NewMachine].
type MachineOption func(*Machine)

// WithTicker attaches a tick source; the machine then drives itself after
// Start, re-arming after each turn until paused or finished. Without one,
// the machine only advances when a caller invokes Advance directly.
func WithTicker(t TickSource) MachineOption {
	return func(m *Machine) { m.ticker = t }
}

// WithTurnListener registers a callback invoked for every appended turn, in
// append order. The callback runs with the session mutex held and must not
// call back into the Machine.
func WithTurnListener(fn func(transcript.Turn)) MachineOption {
	return func(m *Machine) { m.listener = fn }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// WithMetrics attaches metric instruments. A nil Metrics is valid.
func WithMetrics(m *observe.Metrics) MachineOption {
	return func(mc *Machine) { mc.metrics = m }
}

// WithClock overrides the timestamp source for appended turns.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine in the empty SETUP state with a fresh
// session id.
func NewMachine(responder Responder, agenda AgendaSource, policy SpeakerPolicy, opts ...MachineOption) *Machine {
	id := uuid.NewString()
	m := &Machine{
		responder: responder,
		agenda:    agenda,
		policy:    policy,
		logger:    slog.Default(),
		now:       time.Now,
		id:        id,
		session:   Session{ID: id, Mode: ModeSetup},
		log:       transcript.New(),
		tickCtx:   context.Background(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ID returns the session id. Stable for the machine's lifetime, so it is
// safe to call from a turn listener.
func (m *Machine) ID() string {
	return m.id
}

// Snapshot returns a deep copy of the current session state.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// History returns a snapshot of the transcript in append order.
func (m *Machine) History() []transcript.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Turns()
}

// Initialize binds the two participants and the topic, discarding any prior
// session state. The session id is preserved. Returns ErrInvalidParticipants
// if either descriptor is missing its id, name, or chamber tag. On success
// the session is in OPENING mode, not running, not paused, with an empty
// transcript; Start generates the agenda and begins advancement.
func (m *Machine) Initialize(a, b Participant, topic string) error {
	if !a.complete() || !b.complete() {
		return ErrInvalidParticipants
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Cancel()
	}
	m.epoch++
	m.session = Session{
		ID:           m.id,
		Mode:         ModeOpening,
		Topic:        topic,
		ParticipantA: a,
		ParticipantB: b,
	}
	m.log = transcript.New()

	m.logger.Info("session initialized",
		"session_id", m.session.ID,
		"topic", topic,
		"participant_a", a.ID,
		"participant_b", b.ID)
	return nil
}

// Start generates the agenda and begins the debate. Returns
// ErrNotInitialized when topic or participants are unset. Starting an
// already-running session is a no-op success. Agenda generation happens
// synchronously before Start returns; the fallback path in the agenda
// source guarantees it cannot block indefinitely.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Topic == "" || !m.session.ParticipantA.complete() || !m.session.ParticipantB.complete() {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	if m.session.Running {
		m.mu.Unlock()
		return nil
	}
	topic := m.session.Topic
	m.mu.Unlock()

	questions := m.agenda.GenerateAgenda(ctx, topic)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Agenda = questions
	m.session.AgendaCursor = 0
	m.session.Running = true
	m.session.Paused = false
	m.tickCtx = ctx

	m.logger.Info("session started",
		"session_id", m.session.ID,
		"agenda_len", len(questions))
	if m.ticker != nil {
		m.ticker.Arm(m.tick)
	}
	return nil
}

// Pause suspends scheduled advancement. Returns ErrNotRunning when the
// session is not running; pausing an already-paused session is a no-op
// success. The pending tick is cancelled before the flag flips, and the
// epoch bump makes any collaborator result already in flight stale.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.Running {
		return ErrNotRunning
	}
	if m.session.Paused {
		return nil
	}
	if m.ticker != nil {
		m.ticker.Cancel()
	}
	m.epoch++
	m.session.Paused = true

	m.logger.Info("session paused", "session_id", m.session.ID)
	return nil
}

// Resume clears the pause flag and re-arms scheduled advancement. Returns
// ErrNotPaused when the session is not paused. The next tick continues from
// wherever the agenda cursor and rotation state left off.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.Paused {
		return ErrNotPaused
	}
	m.session.Paused = false
	if m.ticker != nil && m.session.Running {
		m.ticker.Arm(m.tick)
	}

	m.logger.Info("session resumed", "session_id", m.session.ID)
	return nil
}

// Interject submits a user question into a paused session. Returns
// ErrMustBePaused when the session is not paused: accepting interjections
// only while paused keeps the user turn and both responses contiguous in
// the transcript, never interleaved with scheduled turns.
//
// On success exactly three turns are appended: the user's question, then
// participant A's response, then participant B's, all sharing one synthetic
// question id and flagged PausedAtCreation. The returned slice holds the
// two response turns. The session stays paused; the caller resumes
// explicitly. If ctx is cancelled mid-generation nothing is appended.
func (m *Machine) Interject(ctx context.Context, userText string) ([]transcript.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.Paused {
		return nil, ErrMustBePaused
	}

	question := Question{
		ID:       uuid.NewString(),
		Text:     userText,
		Category: CategoryUserInterjection,
	}
	history := m.log.Turns()
	userTurn := transcript.Turn{
		ID:               uuid.NewString(),
		Speaker:          transcript.SpeakerUser,
		Content:          userText,
		QuestionID:       question.ID,
		Timestamp:        m.now(),
		PausedAtCreation: true,
	}

	// Generate both responses before appending anything, so a cancelled
	// context cannot leave a user question without its two answers.
	responses := make([]transcript.Turn, 0, 2)
	pending := append(history, userTurn)
	for _, pick := range []struct {
		speaker transcript.Speaker
		p       Participant
	}{
		{transcript.SpeakerParticipantA, m.session.ParticipantA},
		{transcript.SpeakerParticipantB, m.session.ParticipantB},
	} {
		turn, err := m.responder.Respond(ctx, ResponseRequest{
			Topic:       m.session.Topic,
			Speaker:     pick.speaker,
			Participant: pick.p,
			Question:    question,
			History:     pending,
		})
		if err != nil {
			return nil, err
		}
		turn.QuestionID = question.ID
		turn.PausedAtCreation = true
		responses = append(responses, *turn)
		pending = append(pending, *turn)
	}

	m.session.Mode = ModeUserQuestions
	m.appendLocked(userTurn)
	for _, t := range responses {
		m.appendLocked(t)
	}

	m.logger.Info("interjection handled",
		"session_id", m.session.ID,
		"question_id", question.ID)
	return responses, nil
}

// Advance performs one debate step: it asks the rotation policy who speaks
// next, produces that turn, and appends it. A moderator step emits the next
// agenda question (or a synthesized follow-up) and moves the phase; a
// participant step delegates to the responder. When the agenda is exhausted
// and rotation hands the floor back to the moderator, the machine enters
// CLOSING, appends the neutral summary turn, stops running, and reports
// done.
//
// Advance on a paused session is a no-op returning no turn: a tick that
// raced a Pause must land harmlessly. Likewise, if Pause, Reset, or
// Initialize intervened while a collaborator call was in flight, the stale
// result is discarded rather than appended.
func (m *Machine) Advance(ctx context.Context) (turn *transcript.Turn, done bool, err error) {
	ctx, span := observe.StartSpan(ctx, "debate.advance")
	defer span.End()
	start := time.Now()
	defer func() { m.metrics.RecordAdvance(ctx, time.Since(start)) }()

	m.mu.Lock()

	if !m.session.Running {
		m.mu.Unlock()
		return nil, false, ErrNotRunning
	}
	if m.session.Paused {
		m.mu.Unlock()
		return nil, false, nil
	}

	epoch := m.epoch
	history := m.log.Turns()
	next := m.policy.NextSpeaker(history)

	if next == transcript.SpeakerModerator {
		if m.session.AgendaCursor >= len(m.session.Agenda) {
			return m.closeLocked(ctx, epoch, history)
		}
		t := m.emitQuestionLocked(history)
		m.mu.Unlock()
		return t, false, nil
	}

	// Participant turn. The generation call runs outside the mutex so
	// Pause and Reset stay responsive; the epoch guard below discards the
	// result if either intervened.
	req := ResponseRequest{
		Topic:    m.session.Topic,
		Speaker:  next,
		Question: m.session.currentQuestion,
		History:  history,
	}
	if next == transcript.SpeakerParticipantA {
		req.Participant = m.session.ParticipantA
	} else {
		req.Participant = m.session.ParticipantB
	}
	m.mu.Unlock()

	t, err := m.responder.Respond(ctx, req)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.logger.Debug("discarding stale turn",
			"session_id", m.session.ID,
			"speaker", string(next))
		return nil, false, nil
	}
	t.QuestionID = m.session.currentQuestion.ID
	m.appendLocked(*t)
	return t, false, nil
}

// Reset cancels timers, discards history and agenda, and returns the
// session to the empty SETUP state. The session id is preserved. Always
// succeeds.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Cancel()
	}
	m.epoch++
	m.session = Session{ID: m.id, Mode: ModeSetup}
	m.log = transcript.New()

	m.logger.Info("session reset", "session_id", m.session.ID)
}

// emitQuestionLocked appends the next moderator question and advances the
// cursor and phase. Once enough questions have been consumed, the agenda
// source may substitute a contextual follow-up for the static entry. Must
// be called with m.mu held.
func (m *Machine) emitQuestionLocked(history []transcript.Turn) *transcript.Turn {
	q := m.session.Agenda[m.session.AgendaCursor]
	if m.session.AgendaCursor >= followUpEligibleAfter {
		if fu, ok := m.agenda.FollowUp(history, q); ok {
			m.logger.Debug("substituting follow-up question",
				"session_id", m.session.ID,
				"replaced", q.ID,
				"follow_up", fu.ID)
			q = fu
		}
	}
	m.session.AgendaCursor++
	m.session.currentQuestion = q
	m.session.Mode = q.Category.Mode()

	t := transcript.Turn{
		ID:         uuid.NewString(),
		Speaker:    transcript.SpeakerModerator,
		Content:    q.Text,
		QuestionID: q.ID,
		Timestamp:  m.now(),
	}
	m.appendLocked(t)
	return &t
}

// closeLocked transitions to CLOSING, produces the summary turn, and ends
// the session. Called with m.mu held; releases and re-acquires it around the
// summary generation, applying the epoch guard before appending.
func (m *Machine) closeLocked(ctx context.Context, epoch uint64, history []transcript.Turn) (*transcript.Turn, bool, error) {
	m.session.Mode = ModeClosing
	topic := m.session.Topic
	m.mu.Unlock()

	t, err := m.responder.Summarize(ctx, topic, history)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	if m.epoch != epoch {
		m.logger.Debug("discarding stale closing summary", "session_id", m.session.ID)
		return nil, false, nil
	}

	m.appendLocked(*t)
	m.session.Running = false
	if m.ticker != nil {
		m.ticker.Cancel()
	}

	m.logger.Info("session ended",
		"session_id", m.session.ID,
		"turns", m.log.Len())
	return t, true, nil
}

// appendLocked records a turn, stamping id and timestamp if the producer
// left them unset, and notifies the listener. Must be called with m.mu held.
func (m *Machine) appendLocked(t transcript.Turn) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = m.now()
	}
	m.log.Append(t)
	m.metrics.RecordTurn(context.Background(), string(t.Speaker))
	if m.listener != nil {
		m.listener(t)
	}
}

// tick is the scheduled advancement callback: one Advance, then re-arm
// unless the session finished, paused, or errored out of the running state.
func (m *Machine) tick() {
	_, done, err := m.Advance(m.tickCtx)
	if err != nil {
		m.logger.Warn("scheduled advance failed",
			"session_id", m.ID(),
			"error", err)
		return
	}
	if done {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Running && !m.session.Paused {
		m.ticker.Arm(m.tick)
	}
}
