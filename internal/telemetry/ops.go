package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const workflowScopeName = instrumentationScope + "/workflow"

// opMetrics holds lazily-initialized instruments shared by every traced
// workflow operation.
var opMetrics struct {
	ops  metric.Int64Counter
	dur  metric.Float64Histogram
	errs metric.Int64Counter
}

var opMetricsOnce sync.Once

func initOpMetrics() {
	m := Meter(workflowScopeName)
	opMetrics.ops, _ = m.Int64Counter("orch.operations",
		metric.WithDescription("Workflow operations executed"),
	)
	opMetrics.dur, _ = m.Float64Histogram("orch.operation.duration",
		metric.WithDescription("Workflow operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	opMetrics.errs, _ = m.Int64Counter("orch.errors",
		metric.WithDescription("Workflow operations that returned an error"),
	)
}

// Op is one traced workflow operation.
type Op struct {
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// StartOp starts a span named "<kind>.<name>" and counts the operation.
func StartOp(ctx context.Context, kind, name string, attrs ...attribute.KeyValue) (context.Context, *Op) {
	opMetricsOnce.Do(initOpMetrics)
	all := append([]attribute.KeyValue{attribute.String("orch.operation", kind+"."+name)}, attrs...)
	ctx, span := Tracer(workflowScopeName).Start(ctx, kind+"."+name, trace.WithAttributes(all...))
	if opMetrics.ops != nil {
		opMetrics.ops.Add(ctx, 1, metric.WithAttributes(all...))
	}
	return ctx, &Op{span: span, start: time.Now(), attrs: all}
}

// SetAttributes adds attributes to the span only.
func (o *Op) SetAttributes(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
}

// End ends the span, records the duration and the optional error.
func (o *Op) End(ctx context.Context, err error) {
	ms := float64(time.Since(o.start).Milliseconds())
	if opMetrics.dur != nil {
		opMetrics.dur.Record(ctx, ms, metric.WithAttributes(o.attrs...))
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		if opMetrics.errs != nil {
			opMetrics.errs.Add(ctx, 1, metric.WithAttributes(o.attrs...))
		}
	}
	o.span.End()
}
