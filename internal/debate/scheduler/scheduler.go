// Package scheduler drives the timed advancement of a debate session.
//
// A [Scheduler] arms at most one future tick at a time, after a randomized
// delay drawn uniformly from a configured interval. Each armed tick carries a
// generation number; Cancel invalidates the current generation, so a timer
// that has already fired but not yet run its callback is discarded rather
// than firing into a paused or reset session. This compare-and-cancel is the
// one hard concurrency rule of the engine: Pause and Reset must call Cancel
// before mutating session state.
package scheduler

import (
	"math/rand"
	"sync"
	"time"
)

// Default tick delay bounds. Presentation pacing, exposed as options rather
// than hardcoded so deployments can retune them.
const (
	DefaultMinDelay = 3 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

// Scheduler schedules single future invocations of a tick callback.
// All methods are safe for concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	rng      *rand.Rand

	gen   uint64 // current armed generation; bumped by Arm and Cancel
	timer *time.Timer
}

// Option is a functional option for [New].
type Option func(*Scheduler)

// WithDelayBounds sets the inclusive lower and exclusive upper bound of the
// randomized tick delay. Bounds where max <= min collapse to a fixed delay
// of min.
func WithDelayBounds(min, max time.Duration) Option {
	return func(s *Scheduler) {
		s.minDelay = min
		s.maxDelay = max
	}
}

// New creates a Scheduler drawing delay jitter from rng.
func New(rng *rand.Rand, opts ...Option) *Scheduler {
	s := &Scheduler{
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		rng:      rng,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Arm schedules fn to run once after a randomized delay. Any previously
// armed tick is cancelled first — a Scheduler never has two ticks in flight.
func (s *Scheduler) Arm(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.gen++
	g := s.gen

	delay := s.minDelay
	if s.maxDelay > s.minDelay {
		delay += time.Duration(s.rng.Int63n(int64(s.maxDelay - s.minDelay)))
	}

	s.timer = time.AfterFunc(delay, func() {
		// A tick that lost the race against Cancel (or a newer Arm) must
		// not run: compare generations before invoking the callback.
		s.mu.Lock()
		live := s.gen == g
		if live {
			s.timer = nil
		}
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Cancel revokes the pending tick if one is armed; a no-op otherwise.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Armed reports whether a tick is currently pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// cancelLocked invalidates the current generation and stops the timer.
// Must be called with s.mu held.
func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
