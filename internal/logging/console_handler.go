package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const ansiReset = "\033[0m"

// levelColors mirrors the colours of the camera firmware's serial console.
var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[94m",
	slog.LevelInfo:  "\033[92m",
	slog.LevelWarn:  "\033[93m",
	slog.LevelError: "\033[91m",
}

type consoleHandler struct {
	mu       *sync.Mutex
	writer   io.Writer
	level    *slog.LevelVar
	colorize bool
	attrs    []slog.Attr
	groups   []string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, colorize bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, colorize: colorize}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(128)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("15:04:05"))
	buf.WriteByte(' ')

	label := "[" + levelName(record.Level) + "]"
	if h.colorize {
		label = levelColor(record.Level) + label + ansiReset
	}
	buf.WriteString(label)
	buf.WriteByte(' ')

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(message)

	for _, attr := range h.attrs {
		writeAttr(&buf, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&buf, h.groups, attr)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.groups, attrs)...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// qualify prefixes attribute keys with the open groups at the time they were bound.
func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	prefix := strings.Join(groups, ".") + "."
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

func writeAttr(buf *bytes.Buffer, groups []string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		sub := groups
		if attr.Key != "" {
			sub = append(append([]string(nil), groups...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			writeAttr(buf, sub, a)
		}
		return
	}

	buf.WriteByte(' ')
	for _, g := range groups {
		buf.WriteString(g)
		buf.WriteByte('.')
	}
	buf.WriteString(attr.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(attr.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return levelColors[slog.LevelDebug]
	case level < slog.LevelWarn:
		return levelColors[slog.LevelInfo]
	case level < slog.LevelError:
		return levelColors[slog.LevelWarn]
	default:
		return levelColors[slog.LevelError]
	}
}
