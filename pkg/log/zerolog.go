package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	emit(z.logger.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	emit(z.logger.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	emit(z.logger.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	ev := z.logger.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = withError(ev, ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	emit(ev, msg, fields)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	ctx := z.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ctx = ctx.Str(key, v.Error())
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &ZerologLogger{logger: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.logger.GetLevel()
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = withError(ev, key, v)
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(fields)%2 == 1 {
		ev = ev.Interface("!BADKEY", fields[len(fields)-1])
	}
	ev.Msg(msg)
}

func withError(ev *zerolog.Event, key string, err error) *zerolog.Event {
	ev = ev.AnErr(key, err)
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceAttrKey, st)
	}
	return ev
}

// extractStacktrace returns the first safe detail cockroachdb/errors recorded,
// which is the formatted stack of the innermost WithStack.
func extractStacktrace(err error) string {
	safeDetails := cerrors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// ZerologProvider implements LoggerProvider.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing to w at the given level.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	base := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{logger: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{logger: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// warnFunc bridges pkg/errors warnings into this provider's output.
func (p *ZerologProvider) warnFunc(w error) {
	p.mu.RLock()
	ev := p.base.Warn()
	p.mu.RUnlock()
	if m, ok := w.(zerolog.LogObjectMarshaler); ok {
		ev = ev.EmbedObject(m)
	}
	ev.Msg(w.Error())
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

// SetProvider replaces the global provider. Tests use it with a TestLoggerProvider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger of the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetupLogger configures the global provider. format is "json" or "console".
// Logs go to stderr so that stdout carries only the run report.
func SetupLogger(level, format string) error {
	return SetupLoggerTo(os.Stderr, level, format)
}

// SetupLoggerTo is SetupLogger with an explicit writer.
func SetupLoggerTo(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	default:
		return errors.NewValidationError("log_format", "must be json or console", format)
	}

	p := NewZerologProvider(w, lvl)
	SetProvider(p)
	errors.SetZerologWarnFunc(p.warnFunc)
	return nil
}
