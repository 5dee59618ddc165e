package lower

import "log/slog"

// Options configures a Builder.
type Options struct {
	// Logger receives debug records for specializations. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// MaxNodes caps the graph size. Zero means unlimited.
	MaxNodes int

	// FoldConstants collapses operations over constant operands into a
	// single constant and drops additive zeros and multiplicative ones.
	FoldConstants bool
}

// DefaultOptions returns the zero-limit defaults with folding enabled.
func DefaultOptions() Options {
	return Options{Logger: slog.Default(), FoldConstants: true}
}

// Option is a functional option for configuring Builder.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMaxNodes caps the number of graph nodes.
func WithMaxNodes(n int) Option {
	return func(o *Options) {
		o.MaxNodes = n
	}
}

// WithFoldConstants toggles constant folding of generic operations.
func WithFoldConstants(fold bool) Option {
	return func(o *Options) {
		o.FoldConstants = fold
	}
}
