// Package log provides the structured logger used across the node. It is a
// thin wrapper around zerolog with a keyvalue ("w") API and printf helpers.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log levels accepted by Init.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	logTestWriterName = "stdlog"
)

var (
	logger zerolog.Logger
	level  string

	// logTestWriter is the sink selected by the logTestWriterName output.
	// Tests and benchmarks replace it to capture or discard output.
	logTestWriter io.Writer = os.Stdout

	// panicOnInvalidChars makes every write panic if the formatted line
	// carries bytes outside printable ASCII plus whitespace. It catches
	// binary data logged by mistake.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

type checkedWriter struct {
	w io.Writer
}

func (cw checkedWriter) Write(p []byte) (int, error) {
	if panicOnInvalidChars {
		for _, b := range p {
			if b >= 0x7f || (b < 0x20 && b != '\n' && b != '\t') {
				panic(fmt.Sprintf("log line with invalid char %#x: %q", b, p))
			}
		}
	}
	return cw.w.Write(p)
}

type errLevelWriter struct {
	w io.Writer
}

func (ew errLevelWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (ew errLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.ErrorLevel {
		return ew.w.Write(p)
	}
	return len(p), nil
}

// Init configures the global logger. Output is one of "stdout", "stderr" or
// a file path. If errorOutput is not nil, error-and-above lines are copied
// to it as well.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	out = checkedWriter{w: zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "3:04:05PM",
	}}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, errLevelWriter{w: errorOutput})
	}

	zl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		panic(fmt.Sprintf("invalid log level %q", logLevel))
	}
	level = logLevel
	logger = zerolog.New(out).Level(zl).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Level returns the level the logger was initialized with.
func Level() string {
	return level
}

func withFields(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvalues[i])
		}
		ev = ev.Interface(key, keyvalues[i+1])
	}
	if len(keyvalues)%2 != 0 {
		ev = ev.Interface("MISSING_VALUE", keyvalues[len(keyvalues)-1])
	}
	return ev
}

// Debugw logs a message at debug level with alternating key/value pairs.
func Debugw(msg string, keyvalues ...any) {
	withFields(logger.Debug(), keyvalues...).Msg(msg)
}

// Infow logs a message at info level with alternating key/value pairs.
func Infow(msg string, keyvalues ...any) {
	withFields(logger.Info(), keyvalues...).Msg(msg)
}

// Warnw logs a message at warn level with alternating key/value pairs.
func Warnw(msg string, keyvalues ...any) {
	withFields(logger.Warn(), keyvalues...).Msg(msg)
}

// Errorw logs an error with a message at error level.
func Errorw(err error, msg string) {
	logger.Error().Err(err).Msg(msg)
}

func Debug(args ...any) { logger.Debug().Msg(fmt.Sprint(args...)) }
func Info(args ...any)  { logger.Info().Msg(fmt.Sprint(args...)) }
func Warn(args ...any)  { logger.Warn().Msg(fmt.Sprint(args...)) }
func Error(args ...any) { logger.Error().Msg(fmt.Sprint(args...)) }

func Debugf(template string, a ...any) { logger.Debug().Msgf(template, a...) }
func Infof(template string, a ...any)  { logger.Info().Msgf(template, a...) }
func Warnf(template string, a ...any)  { logger.Warn().Msgf(template, a...) }
func Errorf(template string, a ...any) { logger.Error().Msgf(template, a...) }

// Fatal logs the arguments and exits.
func Fatal(args ...any) {
	logger.Fatal().Msg(fmt.Sprint(args...))
}

// Fatalf logs a formatted message and exits.
func Fatalf(template string, a ...any) {
	logger.Fatal().Msgf(template, a...)
}
