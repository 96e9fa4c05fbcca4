// Package log provides the widget runtime's logging. It wraps the Kratos logging
// API over a zerolog backend and offers package-level helpers that fall back to
// stderr until Init has run.
package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	// current holds the active kratos logger (a loggerBox)
	current atomic.Value
	// minLevel gates every record before it reaches zerolog
	minLevel atomic.Int32
)

type loggerBox struct{ l log.Logger }

func init() {
	minLevel.Store(int32(log.LevelInfo))
}

// ParseLevel maps a level name to a Kratos level. Unknown names yield info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "fatal":
		return log.LevelFatal
	}
	return log.LevelInfo
}

// SetLevel changes the minimum level at runtime
func SetLevel(level log.Level) {
	minLevel.Store(int32(level))
}

// GetLevel returns the minimum level
func GetLevel() log.Level {
	return log.Level(minLevel.Load())
}

// Enabled reports whether records at level pass the global gate
func Enabled(level log.Level) bool {
	return level >= GetLevel()
}

// SetLogger installs l as the global logger
func SetLogger(l log.Logger) {
	if l == nil {
		return
	}
	current.Store(loggerBox{l: l})
}

// GetLogger returns a logger that always forwards to the current global logger,
// so components built before Init pick up the configured backend.
func GetLogger() log.Logger {
	return globalLogger{}
}

// NewHelper returns a helper over l, or over the global logger when l is nil
func NewHelper(l log.Logger) *log.Helper {
	if l == nil {
		l = GetLogger()
	}
	return log.NewHelper(l)
}

type globalLogger struct{}

func (globalLogger) Log(level log.Level, keyvals ...any) error {
	if v, ok := current.Load().(loggerBox); ok {
		return v.l.Log(level, keyvals...)
	}
	if !Enabled(level) {
		return nil
	}
	return fallback.Log(level, keyvals...)
}

// fallbackLogger writes plain lines to stderr before the logger is initialized
type fallbackLogger struct{}

func (fallbackLogger) Log(level log.Level, keyvals ...any) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] [widget-log-fallback]", time.Now().Format("2006-01-02 15:04:05.000"), level.String())
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == log.DefaultMessageKey {
			fmt.Fprintf(&sb, " %v", keyvals[i+1])
			continue
		}
		fmt.Fprintf(&sb, " %v=%v", keyvals[i], keyvals[i+1])
	}
	sb.WriteByte('\n')
	_, err := os.Stderr.WriteString(sb.String())
	return err
}

var fallback = fallbackLogger{}

func helper() *log.Helper {
	return log.NewHelper(GetLogger())
}

func Debug(a ...any)                 { helper().Debug(a...) }
func Debugf(format string, a ...any) { helper().Debugf(format, a...) }
func Debugw(keyvals ...any)          { helper().Debugw(keyvals...) }
func Info(a ...any)                  { helper().Info(a...) }
func Infof(format string, a ...any)  { helper().Infof(format, a...) }
func Infow(keyvals ...any)           { helper().Infow(keyvals...) }
func Warn(a ...any)                  { helper().Warn(a...) }
func Warnf(format string, a ...any)  { helper().Warnf(format, a...) }
func Warnw(keyvals ...any)           { helper().Warnw(keyvals...) }
func Error(a ...any)                 { helper().Error(a...) }
func Errorf(format string, a ...any) { helper().Errorf(format, a...) }
func Errorw(keyvals ...any)          { helper().Errorw(keyvals...) }

// InfofCtx logs with values bound to ctx
func InfofCtx(ctx context.Context, format string, a ...any) {
	helper().WithContext(ctx).Infof(format, a...)
}

// ErrorfCtx logs with values bound to ctx
func ErrorfCtx(ctx context.Context, format string, a ...any) {
	helper().WithContext(ctx).Errorf(format, a...)
}
