// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides VFFS's leveled process logger. It layers five
// severities (TRACE, DEBUG, INFO, WARNING, ERROR) on top of log/slog, the
// same approach the teacher's own internal/logger package takes, with
// rotation handled by lumberjack rather than external log management.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity is VFFS's log level, ordered most to least severe (LevelError is
// 0, LevelTrace is 4) -- the opposite of slog's convention, because the
// CLI's repeatable -v
// flag counts UP from silence into increasingly noisy output (§6).
type Severity int

const (
	LevelError Severity = iota
	LevelWarning
	LevelInfo
	LevelDebug
	LevelTrace
)

func (s Severity) String() string {
	switch s {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// FromVerbosity maps the CLI's repeated -v count to a Severity, per §6's
// CLI surface: 0 verbosity flags means Error only, 4 or more means Trace.
func FromVerbosity(count int) Severity {
	switch {
	case count <= 0:
		return LevelError
	case count == 1:
		return LevelWarning
	case count == 2:
		return LevelInfo
	case count == 3:
		return LevelDebug
	default:
		return LevelTrace
	}
}

func (s Severity) slogLevel() slog.Level {
	// slog's levels run the opposite direction from ours; map each rung
	// explicitly rather than trying to reuse the numeric spacing.
	switch s {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Logger is VFFS's process-wide structured logger.
type Logger struct {
	sl       *slog.Logger
	severity Severity
}

// Config selects the logger's format, destination, minimum severity and
// (optional) rotation policy.
type Config struct {
	Severity   Severity
	Format     string // "text" or "json"
	FilePath   string // empty means stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger per cfg. A zero Config logs ERROR-and-above text
// output to stderr.
func New(cfg Config) *Logger {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	handlerOpts := &slog.HandlerOptions{
		Level: cfg.Severity.slogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "time"
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &Logger{sl: slog.New(handler), severity: cfg.Severity}
}

func (l *Logger) log(sev Severity, format string, args ...any) {
	if sev > l.severity {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.sl.LogAttrs(context.Background(), sev.slogLevel(), msg,
		slog.String("severity", sev.String()))
}

func (l *Logger) Errorf(format string, args ...any)   { l.log(LevelError, format, args...) }
func (l *Logger) Warningf(format string, args ...any) { l.log(LevelWarning, format, args...) }
func (l *Logger) Infof(format string, args ...any)    { l.log(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any)   { l.log(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any)   { l.log(LevelTrace, format, args...) }

// NewLegacyLogger adapts Logger to the *log.Logger shape jacobsa/fuse's
// fuse.MountConfig expects for its ErrorLogger/DebugLogger fields, the same
// adaptation the teacher's cmd/mount.go performs under the same name.
func (l *Logger) NewLegacyLogger(sev Severity, prefix string) *log.Logger {
	return log.New(&stdLoggerAdapter{l: l, sev: sev}, prefix, 0)
}

type stdLoggerAdapter struct {
	l   *Logger
	sev Severity
}

func (a *stdLoggerAdapter) Write(p []byte) (int, error) {
	a.l.log(a.sev, "%s", trimTrailingNewline(p))
	return len(p), nil
}

func trimTrailingNewline(p []byte) string {
	s := string(p)
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
