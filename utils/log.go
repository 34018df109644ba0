package utils

import (
	"context"

	"go.uber.org/zap"
)

type logKeyType struct{}

// LogContext returns a context carrying the given zap fields in addition
// to any fields already present.
func LogContext(ctx context.Context, fields ...zap.Field) context.Context {
	fields = append(GetLogContextFields(ctx), fields...)
	return context.WithValue(ctx, logKeyType{}, fields)
}

func GetLogContextFields(ctx context.Context) []zap.Field {
	fields, ok := ctx.Value(logKeyType{}).([]zap.Field)
	if !ok {
		return nil
	}
	return fields
}

// GetLogFromContext builds a child of parentLog with the context's fields
// attached.
func GetLogFromContext(ctx context.Context, parentLog *zap.Logger) *zap.Logger {
	return parentLog.With(GetLogContextFields(ctx)...)
}

func LogContextWith(ctx context.Context, parentLog *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	return LogContext(ctx, fields...), parentLog.With(fields...)
}
