package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.FallbackLLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; agenda and turn generation will run on static fallbacks only")
	}
	if cfg.Providers.FallbackLLM.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.fallback_llm is set but providers.llm is not"))
	}

	if cfg.Providers.Embeddings.Name != "" && cfg.Database.URL == "" {
		slog.Warn("providers.embeddings is configured but database.url is empty; retrieval will not be available")
	}
	if cfg.Database.URL != "" && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("database.url is set but providers.embeddings is not; the retrieval store will not be available")
	}

	d := cfg.Debate
	if d.TickMin < 0 {
		errs = append(errs, fmt.Errorf("debate.tick_min %s is negative", d.TickMin))
	}
	if d.TickMax < 0 {
		errs = append(errs, fmt.Errorf("debate.tick_max %s is negative", d.TickMax))
	}
	if d.TickMin > 0 && d.TickMax > 0 && d.TickMax < d.TickMin {
		errs = append(errs, fmt.Errorf("debate.tick_max %s is below debate.tick_min %s", d.TickMax, d.TickMin))
	}
	if p := d.FollowUpProbability; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("debate.follow_up_probability %.2f is out of range [0, 1]", *p))
	}
	if d.PolicyQuestions != 0 && (d.PolicyQuestions < 2 || d.PolicyQuestions > 3) {
		errs = append(errs, fmt.Errorf("debate.policy_questions %d must be 2 or 3", d.PolicyQuestions))
	}
	if d.ResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("debate.response_timeout %s is negative", d.ResponseTimeout))
	}
	if d.RetrievalK < 0 {
		errs = append(errs, fmt.Errorf("debate.retrieval_k %d is negative", d.RetrievalK))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
