// Package resilience provides failover primitives for the debate engine's
// generation backends.
//
// A [Breaker] is a three-state circuit breaker (closed, open, half-open)
// that stops hammering a backend that keeps failing. A [Chain] composes a
// primary backend with ordered fallbacks, each behind its own breaker, so a
// degraded primary is bypassed instead of slowing every turn. [Failover]
// packages a Chain of llm.Provider backends as an llm.Provider itself.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// breakerState is the operating mode of a Breaker.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig holds tuning knobs for a [Breaker]. Zero fields take
// defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default 3: a debate tick every few seconds cannot afford the five or
	// more failed calls a slower service could.
	Threshold int

	// Cooldown is how long the breaker stays open before probing again.
	// Default 20s.
	Cooldown time.Duration

	// Probes is how many consecutive half-open successes close the breaker.
	// Default 2.
	Probes int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int
	logger    *slog.Logger

	mu       sync.Mutex
	state    breakerState
	failures int // consecutive failures while closed
	okProbes int // consecutive successes while half-open
	openedAt time.Time
}

// NewBreaker creates a Breaker from cfg, filling defaults for zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
		logger:    slog.Default(),
	}
}

// Do runs fn unless the breaker is open inside its cooldown, in which case
// it returns [ErrOpen] without calling fn. The first call after the
// cooldown runs as a half-open probe.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == stateOpen {
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.okProbes = 0
		b.logger.Info("breaker half-open", "name", b.name)
	}
	probing := b.state == stateHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
		return err
	}
	b.succeed(probing)
	return nil
}

// fail records one failed call. Must be called with b.mu held.
func (b *Breaker) fail(probing bool) {
	if probing {
		// One failed probe re-opens immediately.
		b.state = stateOpen
		b.openedAt = time.Now()
		b.logger.Warn("breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = time.Now()
		b.logger.Warn("breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// succeed records one successful call. Must be called with b.mu held.
func (b *Breaker) succeed(probing bool) {
	if probing {
		b.okProbes++
		if b.okProbes >= b.probes {
			b.state = stateClosed
			b.failures = 0
			b.logger.Info("breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// Open reports whether calls would currently be rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.openedAt) < b.cooldown
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.okProbes = 0
}
