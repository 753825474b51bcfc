package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is the private key type for storing a logger in a context.
type contextKey struct{}

// ToContext returns a child context carrying the provided logger.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx or the global logger when none is set.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return global
	}

	if l, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}

	return global
}

// WithName appends a name segment to the context logger.
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(name))
}

// WithKV attaches key-value pairs to every message logged through the returned context.
func WithKV(ctx context.Context, kvs ...any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(kvs...))
}

// WithOptions applies zap options (for example WithLevel) to the context logger.
func WithOptions(ctx context.Context, options ...zap.Option) context.Context {
	return ToContext(ctx, FromContext(ctx).WithOptions(options...))
}
