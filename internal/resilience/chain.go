package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every backend in a [Chain] failed or sat
// behind an open breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

// link pairs a backend with its dedicated breaker.
type link[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

// Chain tries a primary backend and then ordered fallbacks, skipping any
// whose breaker is open. Register backends before first use; the try
// methods are safe for concurrent use, registration is not.
type Chain[T any] struct {
	links  []link[T]
	cfg    BreakerConfig
	logger *slog.Logger
}

// NewChain creates a Chain with primary as the first backend. cfg seeds the
// per-backend breakers; its Name field is ignored in favour of each
// backend's registered name.
func NewChain[T any](name string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg, logger: slog.Default()}
	c.Add(name, primary)
	return c
}

// Add registers a fallback backend. Backends are tried in registration
// order.
func (c *Chain[T]) Add(name string, backend T) {
	cfg := c.cfg
	cfg.Name = name
	c.links = append(c.links, link[T]{
		name:    name,
		backend: backend,
		breaker: NewBreaker(cfg),
	})
}

// Try runs fn against each backend in order until one succeeds. Backends
// behind an open breaker are skipped. On total failure the returned error
// wraps [ErrExhausted] and the last underlying error.
//
// Try is a package-level function because Go methods cannot introduce the
// result type parameter.
func Try[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.breaker.Do(func() error {
			var inner error
			out, inner = fn(l.backend)
			return inner
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			c.logger.Debug("skipping backend, breaker open", "backend", l.name)
		} else {
			c.logger.Warn("backend failed, trying next",
				"backend", l.name,
				"error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
