// Package app wires the Rostrum subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// stores, the generation failover chain, the response coordinator, and the
// session manager; Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithProfileStore, WithRetriever, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podiumworks/rostrum/internal/config"
	"github.com/podiumworks/rostrum/internal/debate/agenda"
	"github.com/podiumworks/rostrum/internal/observe"
	"github.com/podiumworks/rostrum/internal/persona"
	"github.com/podiumworks/rostrum/internal/resilience"
	"github.com/podiumworks/rostrum/internal/respond"
	"github.com/podiumworks/rostrum/pkg/provider/embeddings"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
	"github.com/podiumworks/rostrum/pkg/retrieval"
	retrievalpg "github.com/podiumworks/rostrum/pkg/retrieval/postgres"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM         llm.Provider
	FallbackLLM llm.Provider
	Embeddings  embeddings.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	pool      *pgxpool.Pool
	profiles  persona.Store
	retriever retrieval.Retriever
	generator llm.Provider
	agendas   *agenda.Generator
	responder *respond.Coordinator
	manager   *Manager

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProfileStore injects a persona store instead of creating one from
// config.
func WithProfileStore(s persona.Store) Option {
	return func(a *App) { a.profiles = s }
}

// WithRetriever injects a retrieval backend instead of creating one from
// config.
func WithRetriever(r retrieval.Retriever) Option {
	return func(a *App) { a.retriever = r }
}

// WithMetrics injects metric instruments instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	a.initGeneration()
	a.initEngine()
	return a, nil
}

// initStores connects the Postgres-backed persona and retrieval stores when
// a database URL is configured and no test double was injected.
func (a *App) initStores(ctx context.Context) error {
	if a.cfg.Database.URL == "" || (a.profiles != nil && a.retriever != nil) {
		return nil
	}

	pool, err := pgxpool.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	if a.profiles == nil {
		store := persona.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate persona store: %w", err)
		}
		a.profiles = store
	}

	if a.retriever == nil && a.providers.Embeddings != nil {
		store := retrievalpg.New(pool, a.providers.Embeddings)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate retrieval store: %w", err)
		}
		a.retriever = store
	}
	return nil
}

// initGeneration assembles the generation backend, wrapping primary and
// fallback in a failover chain when both are configured.
func (a *App) initGeneration() {
	a.generator = a.providers.LLM
	if a.providers.LLM != nil && a.providers.FallbackLLM != nil {
		fo := resilience.NewFailover(a.cfg.Providers.LLM.Name, a.providers.LLM, resilience.BreakerConfig{})
		fo.Add(a.cfg.Providers.FallbackLLM.Name, a.providers.FallbackLLM)
		a.generator = fo
	}
}

// initEngine builds the agenda generator, response coordinator, and session
// manager from config.
func (a *App) initEngine() {
	agendaOpts := []agenda.Option{
		agenda.WithFallbackHook(func() {
			a.metrics.RecordAgendaFallback(context.Background())
		}),
	}
	if a.cfg.Debate.PolicyQuestions != 0 {
		agendaOpts = append(agendaOpts, agenda.WithPolicyQuestions(a.cfg.Debate.PolicyQuestions))
	}
	a.agendas = agenda.New(a.generator, agendaOpts...)

	respondOpts := []respond.Option{
		respond.WithMetrics(a.metrics),
	}
	if a.profiles != nil {
		respondOpts = append(respondOpts, respond.WithProfileStore(a.profiles))
	}
	if a.retriever != nil {
		respondOpts = append(respondOpts, respond.WithRetriever(a.retriever))
	}
	if a.cfg.Debate.ResponseTimeout > 0 {
		respondOpts = append(respondOpts, respond.WithTimeout(a.cfg.Debate.ResponseTimeout.Std()))
	}
	if a.cfg.Debate.RetrievalK > 0 {
		respondOpts = append(respondOpts, respond.WithRetrievalK(a.cfg.Debate.RetrievalK))
	}
	a.responder = respond.New(a.generator, respondOpts...)

	a.manager = NewManager(ManagerConfig{
		Responder: a.responder,
		Agendas:   a.agendas,
		Debate:    a.cfg.Debate,
		Metrics:   a.metrics,
	})
}

// Sessions returns the session manager.
func (a *App) Sessions() *Manager {
	return a.manager
}

// Profiles returns the persona store, or nil when none is configured.
func (a *App) Profiles() persona.Store {
	return a.profiles
}

// Shutdown stops all sessions and tears down subsystems in reverse
// initialisation order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.manager.Shutdown()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if e := a.closers[i](); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}
