package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format used by console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. `zapcore.Core` satisfies this interface, which is how
// observed test loggers are wired in.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated, human readable log lines to a writer.
type ConsoleAppender struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStdoutAppender creates a new appender that writes to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return &ConsoleAppender{writer: os.Stdout}
}

// NewWriterAppender creates a new appender that writes to the input writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{writer: writer}
}

// ZapcoreFieldsToJSON encodes fields, in order, as a single json object.
func ZapcoreFieldsToJSON(fields []zapcore.Field) (string, error) {
	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	defer buf.Free()
	return buf.String(), nil
}

func formatEntry(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	const maxLength = 6
	toPrint := make([]string, 0, maxLength)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		toPrint = append(toPrint, entry.LoggerName)
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)
	if len(fields) == 0 {
		return strings.Join(toPrint, "\t"), nil
	}

	encoded, err := ZapcoreFieldsToJSON(fields)
	if err != nil {
		return strings.Join(toPrint, "\t"), err
	}
	toPrint = append(toPrint, encoded)
	return strings.Join(toPrint, "\t"), nil
}

// Write outputs the log entry followed by a newline.
func (app *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, err := formatEntry(entry, fields)
	app.mu.Lock()
	defer app.mu.Unlock()
	if _, writeErr := fmt.Fprintln(app.writer, line); writeErr != nil {
		return writeErr
	}
	return err
}

// Sync is a no-op.
func (app *ConsoleAppender) Sync() error {
	return nil
}

// FileAppenderConfig controls rotation of a log file.
type FileAppenderConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// FileAppender writes console formatted lines to a size rotated file.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender writing to a rotating log file.
func NewFileAppender(cfg FileAppenderConfig) *FileAppender {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 32
	}
	file := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the underlying file.
func (app *FileAppender) Close() error {
	return app.file.Close()
}

func callerToString(caller *zapcore.EntryCaller) string {
	// The file returned by `runtime.Caller` is a full path. Only the package and file name are
	// kept, e.g: "navigation/wallfollow.go:88".
	idx := strings.LastIndexByte(caller.File, '/')
	if idx == -1 {
		return fmt.Sprintf("%s:%d", caller.File, caller.Line)
	}
	idx = strings.LastIndexByte(caller.File[:idx], '/')
	if idx == -1 {
		return fmt.Sprintf("%s:%d", caller.File, caller.Line)
	}
	return fmt.Sprintf("%s:%d", caller.File[idx+1:], caller.Line)
}
