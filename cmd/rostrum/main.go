// Command rostrum runs a moderated debate between two persona-driven
// speakers and prints the timed transcript, citations included.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podiumworks/rostrum/internal/app"
	"github.com/podiumworks/rostrum/internal/config"
	"github.com/podiumworks/rostrum/internal/debate"
	"github.com/podiumworks/rostrum/internal/observe"
	"github.com/podiumworks/rostrum/internal/transcript"
	"github.com/podiumworks/rostrum/pkg/provider/embeddings"
	oaembed "github.com/podiumworks/rostrum/pkg/provider/embeddings/openai"
	"github.com/podiumworks/rostrum/pkg/provider/llm"
	"github.com/podiumworks/rostrum/pkg/provider/llm/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	topic := flag.String("topic", "infrastructure spending", "debate topic")
	speakerA := flag.String("speaker-a", "senate:Alex Varga", "first speaker as chamber:name[:affiliation]")
	speakerB := flag.String("speaker-b", "house:Dana Reyes", "second speaker as chamber:name[:affiliation]")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "rostrum: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "rostrum: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "rostrum"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	a, err := parseSpeaker("a", *speakerA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rostrum: %v\n", err)
		return 1
	}
	b, err := parseSpeaker("b", *speakerB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rostrum: %v\n", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	return runDebate(ctx, application, a, b, *topic)
}

// runDebate creates, starts, and watches one session to completion,
// printing each turn as it lands.
func runDebate(ctx context.Context, application *app.App, a, b debate.Participant, topic string) int {
	sessions := application.Sessions()
	id, err := sessions.CreateSession(a, b, topic)
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}
	machine, err := sessions.Session(id)
	if err != nil {
		slog.Error("session lookup failed", "err", err)
		return 1
	}

	printed := 0
	printNew := func() {
		for _, t := range machine.History()[printed:] {
			printTurn(t)
			printed++
		}
	}

	if err := sessions.Start(ctx, id); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}
	fmt.Printf("=== Debate on %q (session %s) ===\n\n", topic, id)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			printNew()
			fmt.Println("\n=== Interrupted ===")
			return 0
		case <-ticker.C:
			printNew()
			if s := machine.Snapshot(); !s.Running {
				printNew()
				fmt.Println("\n=== Debate concluded ===")
				return 0
			}
		}
	}
}

// printTurn renders one turn with its citations.
func printTurn(t transcript.Turn) {
	fmt.Printf("[%s] %s:\n%s\n", t.Timestamp.Format("15:04:05"), speakerLabel(t.Speaker), t.Content)
	for _, c := range t.Citations {
		fmt.Printf("    [%d] %s — %s\n", c.Marker, c.Publisher, c.SourceURL)
	}
	fmt.Println()
}

func speakerLabel(s transcript.Speaker) string {
	switch s {
	case transcript.SpeakerModerator:
		return "MODERATOR"
	case transcript.SpeakerParticipantA:
		return "SPEAKER A"
	case transcript.SpeakerParticipantB:
		return "SPEAKER B"
	case transcript.SpeakerUser:
		return "AUDIENCE"
	}
	return strings.ToUpper(string(s))
}

// parseSpeaker turns "chamber:name[:affiliation]" into a participant
// descriptor.
func parseSpeaker(id, spec string) (debate.Participant, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return debate.Participant{}, fmt.Errorf("speaker %q must be chamber:name[:affiliation]", spec)
	}
	p := debate.Participant{
		ID:      "speaker-" + id,
		Chamber: parts[0],
		Name:    parts[1],
	}
	if len(parts) == 3 {
		p.Affiliation = parts[2]
	}
	return p, nil
}

// serveMetrics exposes the Prometheus bridge on addr.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp and
	// llamafile share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an
	// API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates every configured provider via the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	p := &app.Providers{}
	var err error

	if cfg.Providers.LLM.Name != "" {
		if p.LLM, err = reg.CreateLLM(cfg.Providers.LLM); err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
	}
	if cfg.Providers.FallbackLLM.Name != "" {
		if p.FallbackLLM, err = reg.CreateLLM(cfg.Providers.FallbackLLM); err != nil {
			return nil, fmt.Errorf("fallback llm: %w", err)
		}
	}
	if cfg.Providers.Embeddings.Name != "" {
		if p.Embeddings, err = reg.CreateEmbeddings(cfg.Providers.Embeddings); err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
	}
	return p, nil
}
