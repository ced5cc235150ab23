// Package logger is the process-wide text logger. Output and level can be
// swapped at runtime (log file setup, config hot reload).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level   slog.LevelVar
	current atomic.Pointer[slog.Logger]
)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput redirects all subsequent lines to w; nil means stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	current.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level})))
}

// SetLevel accepts debug, info, warn/warning or error; anything else falls back to info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logf(lvl slog.Level, format string, v []any) {
	l := current.Load()
	ctx := context.Background()
	if !l.Enabled(ctx, lvl) {
		return
	}
	l.Log(ctx, lvl, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v) }

// InfoBlock logs a multi-line block one line at a time.
func InfoBlock(block string) {
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if line != "" {
			Infof("%s", line)
		}
	}
}

// Tagged prefixes every message with "[tag] " so one component's lines can be
// grepped out of the shared log.
type Tagged struct {
	prefix string
}

func Named(tag string) Tagged {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Tagged{}
	}
	return Tagged{prefix: "[" + tag + "] "}
}

func (t Tagged) Debugf(format string, v ...any) { logf(slog.LevelDebug, t.prefix+format, v) }
func (t Tagged) Infof(format string, v ...any)  { logf(slog.LevelInfo, t.prefix+format, v) }
func (t Tagged) Warnf(format string, v ...any)  { logf(slog.LevelWarn, t.prefix+format, v) }
func (t Tagged) Errorf(format string, v ...any) { logf(slog.LevelError, t.prefix+format, v) }
