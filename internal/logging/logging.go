// Package logging configures zerolog for the CLI and for guests, where records
// travel to the host through its log import.
package logging

import (
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// previewLimit bounds the payload bytes rendered into a log field.
const previewLimit = 256

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	InitLoggerTo(os.Stderr, level, human)
}

// InitLoggerTo sets the global logger writing to w at level.
func InitLoggerTo(w io.Writer, level zerolog.Level, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano         // always initialize base logger with timestamp.
	base := zerolog.New(w).With().Timestamp().Logger() // initialize base logger.
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339Nano,
		}) // select output format.
	} else {
		log.Logger = base // use JSON logger.
	}
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return level
}

// FormatData renders a payload for a log field: printable ASCII as is,
// anything else as hex. Long payloads are truncated.
func FormatData(data []byte) string {
	suffix := ""
	if len(data) > previewLimit {
		data = data[:previewLimit]
		suffix = "..."
	}

	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return hex.EncodeToString(data) + suffix
		}
	}

	return string(data) + suffix
}

// LogInvocation logs one completed guest call with structured fields.
func LogInvocation(
	callID string,
	module string,
	status int32,
	input []byte,
	output []byte,
	elapsed time.Duration,
) {
	event := log.Info()
	if status != 0 {
		event = log.Warn()
	}
	event.
		Str("event", "invocation_complete").
		Str("call_id", callID).
		Str("module", module).
		Int32("status", status).
		Int("input_len", len(input)).
		Str("input", FormatData(input)).
		Int("output_len", len(output)).
		Str("output", FormatData(output)).
		Dur("elapsed", elapsed).
		Msg("invoked guest")
}
