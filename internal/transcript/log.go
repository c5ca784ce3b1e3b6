package transcript

import "sync"

// Log is an append-only ordered record of conversation turns.
// All methods are safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

// New returns an empty, ready-to-use [Log].
func New() *Log {
	return &Log{}
}

// Append adds a turn to the end of the log.
func (l *Log) Append(t Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
}

// Turns returns a snapshot copy of all turns in append order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Last returns a snapshot of the most recent n turns (fewer if the log is
// shorter). Passing n <= 0 returns nil.
func (l *Log) Last(n int) []Turn {
	if n <= 0 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.turns) {
		n = len(l.turns)
	}
	out := make([]Turn, n)
	copy(out, l.turns[len(l.turns)-n:])
	return out
}

// Len returns the number of turns appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}
