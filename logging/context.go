package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const (
	debugKeyID ctxKey = iota
	fieldsKeyID
)

// EnableDebugMode returns a context under which the context variants log at debug regardless of
// the logger level. An empty key generates a short random one. The key is logged as "debug".
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, debugKeyID, key)
}

// IsDebugMode returns whether the context has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	return debugKey(ctx) != ""
}

func debugKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(debugKeyID).(string)
	return key
}

// WithFields returns a context whose log lines carry the given key/value pairs after the line's
// own. Pairs attached further up the context chain come first.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	inherited := contextFields(ctx)
	fields := make([]zapcore.Field, 0, len(inherited)+len(keysAndValues)/2)
	fields = append(fields, inherited...)
	fields = appendPairs(fields, keysAndValues)
	return context.WithValue(ctx, fieldsKeyID, fields)
}

func contextFields(ctx context.Context) []zapcore.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKeyID).([]zapcore.Field)
	return fields
}
