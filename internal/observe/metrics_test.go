package observe

import (
	"context"
	"testing"
	"time"
)

// Collaborators treat metrics as optional; every instrument method must be a
// safe no-op on a nil receiver.
func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	ctx := context.Background()

	m.RecordAdvance(ctx, 10*time.Millisecond)
	m.RecordGeneration(ctx, 10*time.Millisecond)
	m.RecordTurn(ctx, "moderator")
	m.RecordAgendaFallback(ctx)
	m.RecordCitationsDropped(ctx, 2)
	m.RecordGenerationError(ctx)
	m.AddActiveSessions(ctx, 1)
}

func TestRecordCitationsDroppedIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	m := DefaultMetrics()
	ctx := context.Background()

	// Zero and negative drop counts are discarded rather than recorded.
	m.RecordCitationsDropped(ctx, 0)
	m.RecordCitationsDropped(ctx, -3)
	m.RecordCitationsDropped(ctx, 1)
}
