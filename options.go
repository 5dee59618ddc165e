package gosymopt

import (
	"log/slog"

	"github.com/njchilds90/gosymopt/config"
	"github.com/njchilds90/gosymopt/diff"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Options configures Compile.
type Options struct {
	// Config holds the tunables. Defaults to config.Default().
	Config config.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Differentiator replaces the symbolic differentiator built from
	// Config.Diff.
	Differentiator diff.Differentiator

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Registerer receives the engine's prometheus collectors when metrics
	// are enabled.
	Registerer prometheus.Registerer
}

// Option is a functional option for configuring Compile.
type Option func(*Options)

func defaultOptions() Options {
	return Options{Config: config.Default(), Logger: slog.Default()}
}

// WithConfig replaces the configuration.
func WithConfig(c config.Config) Option {
	return func(o *Options) {
		o.Config = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithDifferentiator supplies a differentiator.
func WithDifferentiator(d diff.Differentiator) Option {
	return func(o *Options) {
		o.Differentiator = d
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.MeterProvider = mp
	}
}

// WithRegisterer sets the prometheus registerer for engine metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = r
	}
}
