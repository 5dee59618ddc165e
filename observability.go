package gosymopt

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/njchilds90/gosymopt"

// compileMetrics holds the instruments of one meter.
type compileMetrics struct {
	latency metric.Float64Histogram
	total   metric.Int64Counter
	nodes   metric.Int64Histogram
	rows    metric.Int64Histogram
}

func newCompileMetrics(m metric.Meter) (*compileMetrics, error) {
	var (
		cm  compileMetrics
		err error
	)
	cm.latency, err = m.Float64Histogram(
		"gosymopt_compile_duration_seconds",
		metric.WithDescription("Duration of model compiles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	cm.total, err = m.Int64Counter(
		"gosymopt_compile_total",
		metric.WithDescription("Total number of model compiles"),
	)
	if err != nil {
		return nil, err
	}
	cm.nodes, err = m.Int64Histogram(
		"gosymopt_graph_nodes",
		metric.WithDescription("Number of IR nodes per compile"),
	)
	if err != nil {
		return nil, err
	}
	cm.rows, err = m.Int64Histogram(
		"gosymopt_graph_rows",
		metric.WithDescription("Number of solver rows per compile"),
	)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func (o Options) tracer() trace.Tracer {
	if !o.Config.Observability.TracingEnabled {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	if o.TracerProvider != nil {
		return o.TracerProvider.Tracer(instrumentationName)
	}
	return otel.Tracer(instrumentationName)
}

func (o Options) meter() metric.Meter {
	if o.MeterProvider != nil {
		return o.MeterProvider.Meter(instrumentationName)
	}
	return otel.Meter(instrumentationName)
}

func (o Options) recordCompile(ctx context.Context, d time.Duration, nodes, rows int, err error) {
	cm, merr := newCompileMetrics(o.meter())
	if merr != nil {
		o.Logger.Debug("compile metrics unavailable", "error", merr)
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	cm.latency.Record(ctx, d.Seconds(), attrs)
	cm.total.Add(ctx, 1, attrs)
	if err == nil {
		cm.nodes.Record(ctx, int64(nodes))
		cm.rows.Record(ctx, int64(rows))
	}
}

// runPhase runs fn under a child span named after the phase.
func runPhase(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "gosymopt."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func setSpanResult(span trace.Span, nodes, rows int, err error) {
	span.SetAttributes(
		attribute.Int("gosymopt.nodes", nodes),
		attribute.Int("gosymopt.rows", rows),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
