package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Conf is read from widget.log
type Conf struct {
	Level      string `json:"level" yaml:"level"`
	Console    bool   `json:"console" yaml:"console"`
	NoColor    bool   `json:"no_color" yaml:"no_color"`
	FilePath   string `json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
	Timezone   string `json:"timezone" yaml:"timezone"`
	CallerSkip int    `json:"caller_skip" yaml:"caller_skip"`
}

// DefaultConf logs info and above to the console
func DefaultConf() Conf {
	return Conf{Level: "info", Console: true}
}

const callerSkipDefault = 5

// Init builds the zerolog-backed logger described by c and installs it globally.
// The returned closer flushes and closes the rotating file, if any.
func Init(c Conf, name, version string, extra ...io.Writer) (io.Closer, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	var writers []io.Writer
	if c.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339Nano,
			NoColor:    c.NoColor,
		})
	}

	var closer io.Closer = nopCloser{}
	if c.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fw := &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   c.Compress,
		}
		writers = append(writers, fw)
		closer = fw
	}
	writers = append(writers, extra...)
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	loc := time.Local
	if c.Timezone != "" {
		if l, err := time.LoadLocation(c.Timezone); err == nil {
			loc = l
		}
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }

	SetLevel(ParseLevel(c.Level))
	// the atomic gate does the filtering; zerolog passes everything through
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	skip := callerSkipDefault
	if c.CallerSkip > 0 {
		skip = c.CallerSkip
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	logger := log.With(
		zeroLogLogger{logger: zl},
		"caller", Caller(skip),
		"service.name", name,
		"service.version", version,
	)
	SetLogger(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Caller returns a log.Valuer that provides the caller's source location.
//
// Example output: "widget/lifecycle.go:42"
func Caller(depth int) log.Valuer {
	if depth < 0 {
		depth = 0
	}
	return func(context.Context) any {
		_, file, line, ok := runtime.Caller(depth)
		if !ok {
			return "unknown:0"
		}
		return trimFilePath(file, 2) + ":" + strconv.Itoa(line)
	}
}

// trimFilePath reduces a file path to its last 'depth' components.
func trimFilePath(file string, depth int) string {
	if file == "" || depth <= 0 {
		return "unknown"
	}
	var slashPos []int
	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '/' || file[i] == '\\' {
			slashPos = append(slashPos, i)
			if len(slashPos) == depth {
				break
			}
		}
	}
	if len(slashPos) == 0 {
		return file
	}
	return file[slashPos[len(slashPos)-1]+1:]
}
