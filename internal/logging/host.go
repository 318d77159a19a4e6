package logging

import (
	"bytes"

	"github.com/rs/zerolog"

	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// HostWriter is a zerolog.LevelWriter that forwards each record to the host
// log import. It never fails: host panics are swallowed and every write
// reports success.
type HostWriter struct {
	host  hostabi.Host
	human bool
}

var _ zerolog.LevelWriter = (*HostWriter)(nil)

// NewHostWriter returns a writer for host. When human is set, records are
// rendered as plain text instead of JSON.
func NewHostWriter(host hostabi.Host, human bool) *HostWriter {
	return &HostWriter{host: host, human: human}
}

// NewHostLogger returns a logger at level whose records go to host.
func NewHostLogger(host hostabi.Host, level zerolog.Level, human bool) zerolog.Logger {
	return zerolog.New(NewHostWriter(host, human)).Level(level)
}

// Write implements io.Writer for records without a level.
func (w *HostWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *HostWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	n = len(p)
	if w == nil || w.host == nil {
		return n, nil
	}

	defer func() {
		if recover() != nil {
			n, err = len(p), nil
		}
	}()

	msg := p
	if w.human {
		msg = render(p)
	}
	msg = bytes.TrimRight(msg, "\n")
	if len(msg) == 0 {
		return n, nil
	}
	w.host.Log(hostLevel(level), string(msg))

	return n, nil
}

// render formats a JSON record as "message key=value ...". Records that
// fail to parse are passed through unchanged.
func render(p []byte) []byte {
	var buf bytes.Buffer
	cw := zerolog.ConsoleWriter{
		Out:          &buf,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName},
	}
	if _, err := cw.Write(p); err != nil {
		return p
	}

	return buf.Bytes()
}

func hostLevel(level zerolog.Level) hostabi.LogLevel {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return hostabi.LogDebug
	case zerolog.WarnLevel:
		return hostabi.LogWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return hostabi.LogError
	default:
		return hostabi.LogInfo
	}
}
