package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/ports"
)

const tracerName = "github.com/ahrav/go-metricvote/units"

var _ ports.Unit = (*TracedUnit)(nil)

// TracedUnit wraps a unit with an OpenTelemetry span and reports its
// latency, outcome, and any measurements it adds to a MetricsCollector.
type TracedUnit struct {
	next    ports.Unit
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewTracedUnit wraps next. metrics may be nil, in which case only spans
// are produced. Spans go to the global tracer provider.
func NewTracedUnit(next ports.Unit, metrics ports.MetricsCollector) *TracedUnit {
	return &TracedUnit{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Name returns the wrapped unit's name.
func (u *TracedUnit) Name() string { return u.next.Name() }

// Validate delegates to the wrapped unit.
func (u *TracedUnit) Validate() error { return u.next.Validate() }

// Execute runs the wrapped unit inside a span named after it.
func (u *TracedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "unit."+u.next.Name())
	defer span.End()

	rule, _ := domain.Get(state, domain.KeyRule)
	span.SetAttributes(
		attribute.String("unit.name", u.next.Name()),
		attribute.String("election.rule", rule),
	)
	if ec, ok := state.GetExecutionContext(); ok {
		span.SetAttributes(
			attribute.String("run.id", ec.RunID),
			attribute.Int("sample.index", ec.SampleIndex),
		)
	}

	before, _ := domain.Get(state, domain.KeyMeasurements)

	start := time.Now()
	out, err := u.next.Execute(ctx, state)
	elapsed := time.Since(start)

	labels := map[string]string{"unit": u.next.Name()}
	if u.metrics != nil {
		u.metrics.RecordLatency("unit_execution", elapsed, labels)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if u.metrics != nil {
			u.metrics.RecordCounter("unit_executions_total", 1, map[string]string{
				"unit":   u.next.Name(),
				"status": "error",
			})
		}
		return out, err
	}

	after, _ := domain.Get(out, domain.KeyMeasurements)
	if len(after) > len(before) {
		added := after[len(before):]
		span.AddEvent("measurements.recorded", trace.WithAttributes(
			attribute.Int("count", len(added)),
			attribute.String("metric", added[0].Metric),
		))
		if u.metrics != nil {
			for _, m := range added {
				u.metrics.RecordHistogram("score", m.Score, map[string]string{
					"metric": m.Metric,
					"rule":   rule,
				})
			}
		}
	}

	if u.metrics != nil {
		u.metrics.RecordCounter("unit_executions_total", 1, labels)
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}
