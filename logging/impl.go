package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var errUnpairedKey = errors.New("unpaired log key")

// impl fans each entry out to its appenders. Subloggers share the appender slice.
type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

// Sublogger shares appenders with its parent but carries its own level.
func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) enabled(ctx context.Context, level Level) bool {
	return level >= imp.level.Get() || IsDebugMode(ctx)
}

// emit must be called directly by the exported method so the caller lookup lands on user code.
func (imp *impl) emit(ctx context.Context, level Level, msg string, keysAndValues []interface{}) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerOf(3),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}

	inherited := contextFields(ctx)
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2+len(inherited)+1)
	fields = appendPairs(fields, keysAndValues)
	fields = append(fields, inherited...)
	if key := debugKey(ctx); key != "" {
		fields = append(fields, zap.String("debug", key))
	}

	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), DEBUG) {
		imp.emit(context.Background(), DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, DEBUG) {
		imp.emit(ctx, DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), INFO) {
		imp.emit(context.Background(), INFO, msg, keysAndValues)
	}
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, INFO) {
		imp.emit(ctx, INFO, msg, keysAndValues)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), WARN) {
		imp.emit(context.Background(), WARN, msg, keysAndValues)
	}
}

func (imp *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, WARN) {
		imp.emit(ctx, WARN, msg, keysAndValues)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(context.Background(), ERROR) {
		imp.emit(context.Background(), ERROR, fmt.Sprint(args...), nil)
	}
}

// appendPairs turns alternating keys and values into fields. A trailing key without a value is
// kept, with an error as its value.
func appendPairs(fields []zapcore.Field, keysAndValues []interface{}) []zapcore.Field {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.NamedError(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// callerOf reports the frame skip levels above itself.
func callerOf(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
