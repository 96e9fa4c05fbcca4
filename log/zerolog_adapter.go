package log

import (
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
)

var zeroLevels = map[log.Level]zerolog.Level{
	log.LevelDebug: zerolog.DebugLevel,
	log.LevelInfo:  zerolog.InfoLevel,
	log.LevelWarn:  zerolog.WarnLevel,
	log.LevelError: zerolog.ErrorLevel,
	// WithLevel logs fatal without exiting; the host process owns its lifetime
	log.LevelFatal: zerolog.FatalLevel,
}

// zeroLogLogger writes kratos key/value records as zerolog events
type zeroLogLogger struct {
	logger zerolog.Logger
}

func (l zeroLogLogger) Log(level log.Level, keyvals ...any) error {
	if !Enabled(level) {
		return nil
	}
	zl, ok := zeroLevels[level]
	if !ok {
		zl = zerolog.WarnLevel
	}
	event := l.logger.WithLevel(zl)
	if !ok {
		event = event.Stringer("kratos_level", level)
	}

	var msg string
	for i := 0; i < len(keyvals); i += 2 {
		key, isStr := keyvals[i].(string)
		if !isStr {
			key = fmt.Sprint(keyvals[i])
		}
		if i+1 == len(keyvals) {
			event = event.Interface(key, "MISSING_VALUE")
			break
		}
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		event = field(event, key, keyvals[i+1])
	}
	event.Msg(msg)
	return nil
}

// field picks a typed zerolog field for the values the runtime logs most
func field(e *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case error:
		if key == "err" || key == "error" {
			return e.Err(v)
		}
		return e.AnErr(key, v)
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	case fmt.Stringer:
		return e.Stringer(key, v)
	default:
		return e.Interface(key, v)
	}
}
