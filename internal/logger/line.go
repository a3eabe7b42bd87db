package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// timestampLayout renders UTC times with millisecond precision, e.g. 2024-02-13T18:00:00.000Z.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// LineOptions configures a LineHandler. A nil writer or empty FilePath disables that sink.
type LineOptions struct {
	Level    slog.Leveler
	FilePath string
	Stdout   io.Writer // receives DEBUG and INFO
	Stderr   io.Writer // receives WARN and ERROR
}

// lineSink is shared by a handler and every handler derived from it via With*.
type lineSink struct {
	mu       sync.Mutex
	filePath string
	dirReady bool
	stdout   io.Writer
	stderr   io.Writer
}

// LineHandler is an slog.Handler that writes one `[timestamp] [LEVEL] message` line per
// record. Attributes follow the message as key=value pairs. Every record is appended to
// the log file with its own open-write-close, so nothing is buffered between calls.
type LineHandler struct {
	level  slog.Leveler
	sink   *lineSink
	attrs  string
	prefix string
}

// NewLineHandler creates a LineHandler. The log file's directory is created on the
// first write, not here.
func NewLineHandler(opts LineOptions) *LineHandler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &LineHandler{
		level: level,
		sink: &lineSink{
			filePath: opts.FilePath,
			stdout:   opts.Stdout,
			stderr:   opts.Stderr,
		},
	}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&buf, "[%s] [%s] %s", ts.UTC().Format(timestampLayout), r.Level.String(), r.Message)
	buf.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	return h.sink.write(r.Level, buf.Bytes())
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var buf bytes.Buffer
	buf.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&buf, h.prefix, a)
	}
	clone := *h
	clone.attrs = buf.String()
	return &clone
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, groupPrefix, ga)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')

	var val string
	if a.Value.Kind() == slog.KindTime {
		val = a.Value.Time().UTC().Format(timestampLayout)
	} else {
		val = a.Value.String()
	}
	if val == "" || strings.ContainsAny(val, " =\"\t\n") {
		val = strconv.Quote(val)
	}
	buf.WriteString(val)
}

func (s *lineSink) write(level slog.Level, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	console := s.stdout
	if level >= slog.LevelWarn {
		console = s.stderr
	}
	if console != nil {
		_, _ = console.Write(line)
	}

	if s.filePath == "" {
		return nil
	}
	if !s.dirReady {
		if err := ensureDir(s.filePath); err != nil {
			return err
		}
		s.dirReady = true
	}
	return appendToFile(s.filePath, line)
}

// ensureDir creates the parent directory of path if it does not exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

func appendToFile(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to log file %s: %w", path, err)
	}
	return f.Close()
}
