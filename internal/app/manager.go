package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/podiumworks/rostrum/internal/config"
	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/internal/debate/rotation"
	"github.com/podiumworks/rostrum/internal/debate/scheduler"
	"github.com/podiumworks/rostrum/internal/observe"
	"github.com/podiumworks/rostrum/internal/transcript"
)

// ErrSessionNotFound is returned by Manager methods when no session exists
// under the given id.
var ErrSessionNotFound = errors.New("app: session not found")

// SessionInfo holds metadata about one managed session.
type SessionInfo struct {
	SessionID string
	Topic     string
	Mode      debate.Mode
	Running   bool
	Paused    bool
	Turns     int
	CreatedAt time.Time
}

// ManagerConfig holds the dependencies for a [Manager].
type ManagerConfig struct {
	Responder debate.Responder
	Agendas   debate.AgendaSource
	Debate    config.DebateConfig
	Metrics   *observe.Metrics
	Logger    *slog.Logger

	// TurnListener, when set, observes every appended turn of every
	// session.
	TurnListener func(sessionID string, t transcript.Turn)

	// Seed fixes the entropy for rotation and tick jitter across all
	// sessions. Zero seeds from the clock.
	Seed int64
}

// entry is one managed session.
type entry struct {
	machine   *debate.Machine
	createdAt time.Time
}

// Manager owns the set of live debate sessions, keyed by session id. Each
// session gets its own state machine, rotation policy, and scheduler;
// nothing is shared between sessions but the collaborators behind them.
// All methods are safe for concurrent use.
type Manager struct {
	responder debate.Responder
	agendas   debate.AgendaSource
	debateCfg config.DebateConfig
	metrics   *observe.Metrics
	logger    *slog.Logger
	listener  func(string, transcript.Turn)
	seed      int64

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		responder: cfg.Responder,
		agendas:   cfg.Agendas,
		debateCfg: cfg.Debate,
		metrics:   cfg.Metrics,
		logger:    logger,
		listener:  cfg.TurnListener,
		seed:      cfg.Seed,
		sessions:  make(map[string]*entry),
	}
}

// CreateSession builds and initialises a new session for the given
// participants and topic, returning its id. The session is not started.
func (m *Manager) CreateSession(a, b debate.Participant, topic string) (string, error) {
	seed := m.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rotOpts := []rotation.Option{}
	if p := m.debateCfg.FollowUpProbability; p != nil {
		rotOpts = append(rotOpts, rotation.WithFollowUpProbability(*p))
	}
	policy := rotation.New(rand.New(rand.NewSource(seed)), rotOpts...)

	schedOpts := []scheduler.Option{}
	if m.debateCfg.TickMin > 0 && m.debateCfg.TickMax > 0 {
		schedOpts = append(schedOpts, scheduler.WithDelayBounds(m.debateCfg.TickMin.Std(), m.debateCfg.TickMax.Std()))
	}
	ticker := scheduler.New(rand.New(rand.NewSource(seed+1)), schedOpts...)

	var machine *debate.Machine
	opts := []debate.MachineOption{
		debate.WithTicker(ticker),
		debate.WithLogger(m.logger),
		debate.WithMetrics(m.metrics),
	}
	if m.listener != nil {
		// machine.ID is construction-stable, so the closure can read it
		// even though machine is assigned below.
		opts = append(opts, debate.WithTurnListener(func(t transcript.Turn) {
			m.listener(machine.ID(), t)
		}))
	}
	machine = debate.NewMachine(m.responder, m.agendas, policy, opts...)
	if err := machine.Initialize(a, b, topic); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.sessions[machine.ID()] = &entry{machine: machine, createdAt: time.Now()}
	m.mu.Unlock()

	m.metrics.AddActiveSessions(context.Background(), 1)
	m.logger.Info("session created",
		"session_id", machine.ID(),
		"topic", topic)
	return machine.ID(), nil
}

// Start begins scheduled advancement for the session.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	mc, err := m.machine(sessionID)
	if err != nil {
		return err
	}
	return mc.Start(ctx)
}

// Pause suspends the session.
func (m *Manager) Pause(sessionID string) error {
	mc, err := m.machine(sessionID)
	if err != nil {
		return err
	}
	return mc.Pause()
}

// Resume continues a paused session.
func (m *Manager) Resume(sessionID string) error {
	mc, err := m.machine(sessionID)
	if err != nil {
		return err
	}
	return mc.Resume()
}

// Interject submits a user question into a paused session and returns the
// two participant response turns.
func (m *Manager) Interject(ctx context.Context, sessionID, userText string) ([]transcript.Turn, error) {
	mc, err := m.machine(sessionID)
	if err != nil {
		return nil, err
	}
	return mc.Interject(ctx, userText)
}

// Advance performs one manual debate step, for callers driving a session
// without the scheduler.
func (m *Manager) Advance(ctx context.Context, sessionID string) (*transcript.Turn, bool, error) {
	mc, err := m.machine(sessionID)
	if err != nil {
		return nil, false, err
	}
	return mc.Advance(ctx)
}

// Session returns the machine for direct inspection.
func (m *Manager) Session(sessionID string) (*debate.Machine, error) {
	return m.machine(sessionID)
}

// Remove resets the session and drops it from the manager.
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	e.machine.Reset()
	m.metrics.AddActiveSessions(context.Background(), -1)
	m.logger.Info("session removed", "session_id", sessionID)
	return nil
}

// List returns metadata for every managed session, in no particular order.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for id, e := range m.sessions {
		s := e.machine.Snapshot()
		out = append(out, SessionInfo{
			SessionID: id,
			Topic:     s.Topic,
			Mode:      s.Mode,
			Running:   s.Running,
			Paused:    s.Paused,
			Turns:     len(e.machine.History()),
			CreatedAt: e.createdAt,
		})
	}
	return out
}

// Shutdown resets every session, cancelling all pending ticks. The manager
// is empty afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.machine.Reset()
		m.metrics.AddActiveSessions(context.Background(), -1)
	}
	if len(entries) > 0 {
		m.logger.Info("all sessions shut down", "count", len(entries))
	}
}

func (m *Manager) machine(sessionID string) (*debate.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return e.machine, nil
}
