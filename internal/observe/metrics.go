// Package observe provides observability primitives for Rostrum:
// OpenTelemetry metrics, tracing helpers, and the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Rostrum metrics.
const meterName = "github.com/podiumworks/rostrum"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation. All record methods are no-ops on a nil
// receiver, so wiring metrics is optional everywhere.
type Metrics struct {
	// AdvanceDuration tracks one full debate step, from tick to appended
	// turn.
	AdvanceDuration metric.Float64Histogram

	// GenerationDuration tracks generation backend latency.
	GenerationDuration metric.Float64Histogram

	// Turns counts appended turns. Use with attribute:
	//   attribute.String("speaker", ...)
	Turns metric.Int64Counter

	// AgendaFallbacks counts agendas served from the static template.
	AgendaFallbacks metric.Int64Counter

	// CitationsDropped counts citation markers dropped as out of range.
	CitationsDropped metric.Int64Counter

	// GenerationErrors counts generation backend failures absorbed by
	// fallback content.
	GenerationErrors metric.Int64Counter

	// ActiveSessions tracks the number of running debate sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM-backed turn generation.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AdvanceDuration, err = m.Float64Histogram("rostrum.advance.duration",
		metric.WithDescription("Latency of one debate advancement step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("rostrum.generation.duration",
		metric.WithDescription("Latency of generation backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("rostrum.turns",
		metric.WithDescription("Total appended transcript turns by speaker."),
	); err != nil {
		return nil, err
	}
	if met.AgendaFallbacks, err = m.Int64Counter("rostrum.agenda.fallbacks",
		metric.WithDescription("Total agendas served from the static template."),
	); err != nil {
		return nil, err
	}
	if met.CitationsDropped, err = m.Int64Counter("rostrum.citations.dropped",
		metric.WithDescription("Total citation markers dropped as unresolvable."),
	); err != nil {
		return nil, err
	}
	if met.GenerationErrors, err = m.Int64Counter("rostrum.generation.errors",
		metric.WithDescription("Total generation failures absorbed by fallback content."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("rostrum.active_sessions",
		metric.WithDescription("Number of running debate sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAdvance records the duration of one debate step.
func (m *Metrics) RecordAdvance(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.AdvanceDuration.Record(ctx, d.Seconds())
}

// RecordGeneration records one generation backend call.
func (m *Metrics) RecordGeneration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationDuration.Record(ctx, d.Seconds())
}

// RecordTurn records one appended turn for the given speaker.
func (m *Metrics) RecordTurn(ctx context.Context, speaker string) {
	if m == nil {
		return
	}
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("speaker", speaker)))
}

// RecordAgendaFallback records one static-template agenda.
func (m *Metrics) RecordAgendaFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.AgendaFallbacks.Add(ctx, 1)
}

// RecordCitationsDropped records n unresolvable citation markers.
func (m *Metrics) RecordCitationsDropped(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CitationsDropped.Add(ctx, int64(n))
}

// RecordGenerationError records one absorbed generation failure.
func (m *Metrics) RecordGenerationError(ctx context.Context) {
	if m == nil {
		return
	}
	m.GenerationErrors.Add(ctx, 1)
}

// AddActiveSessions adjusts the running-session gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
