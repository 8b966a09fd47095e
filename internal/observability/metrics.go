package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies this module to OpenTelemetry providers
const InstrumentationName = "github.com/upb/arp-template-pdp"

// DecisionLabels contains metric dimensions for a decision
type DecisionLabels struct {
	Mode       string
	Outcome    string
	ReasonCode string
}

func (l DecisionLabels) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("arp.policy.mode", l.Mode),
		attribute.String("arp.decision", l.Outcome),
		attribute.String("arp.reason_code", l.ReasonCode),
	}
}

// DecisionMetrics records decision counts, latencies and evaluator errors
type DecisionMetrics struct {
	decisions metric.Int64Counter
	errors    metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewDecisionMetrics creates the instruments on the given meter.
// A nil meter uses the global provider.
func NewDecisionMetrics(meter metric.Meter) (*DecisionMetrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	decisions, err := meter.Int64Counter("arp.pdp.decisions",
		metric.WithDescription("Policy decisions returned, by outcome and reason"),
		metric.WithUnit("{decision}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	errs, err := meter.Int64Counter("arp.pdp.errors",
		metric.WithDescription("Evaluations that failed without producing a decision"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	latency, err := meter.Float64Histogram("arp.pdp.decision.duration",
		metric.WithDescription("Time spent evaluating a policy decision"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	return &DecisionMetrics{
		decisions: decisions,
		errors:    errs,
		latency:   latency,
	}, nil
}

// RecordDecision records one successful evaluation
func (m *DecisionMetrics) RecordDecision(ctx context.Context, labels DecisionLabels, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(labels.attributes()...)
	m.decisions.Add(ctx, 1, opt)
	m.latency.Record(ctx, float64(elapsed.Microseconds())/1000.0, opt)
}

// RecordError records one failed evaluation
func (m *DecisionMetrics) RecordError(ctx context.Context, mode, errorType string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("arp.policy.mode", mode),
		attribute.String("error.type", errorType),
	))
}

// Tracer returns the module tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// EndSpan closes span, marking it failed when err is non-nil
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
