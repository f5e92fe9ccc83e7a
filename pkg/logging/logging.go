// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package logging provides structured logging utilities for the sandbox
// analysis pipeline. It wraps the standard library slog package with
// project-specific defaults and conventions for consistent logging across
// the session manager, sandbox runtime, and samplers.
//
// # Log Levels
//
// Supported log levels (case-insensitive): DEBUG, INFO, WARN/WARNING, ERROR.
// DEBUG additionally records the source file/line of the call site.
//
// # Environment Configuration
//
// LOG_LEVEL controls the default logger's verbosity, e.g.:
//
//	LOG_LEVEL=debug sandboxd analyze --session abc123
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// SetDefault installs a JSON structured logger as the slog default, tagged
// with the given component name and version. The level is read from
// LOG_LEVEL if set, otherwise defaults to info.
func SetDefault(component, version string) {
	slog.SetDefault(New(component, version, os.Getenv("LOG_LEVEL")))
}

// New builds a structured logger writing JSON to stderr, tagged with
// component and version context and the given level.
func New(component, version, level string) *slog.Logger {
	lvl := ParseLevel(level)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(handler).With(
		"component", component,
		"version", version,
	)
}

// ParseLevel parses a case-insensitive level name, defaulting to Info for
// unknown or empty input.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithSession returns a logger annotated with a session id, for use across
// the lifetime of a single session's execution.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// sessionLoggerKey is unexported to keep the context key space private.
type sessionLoggerKey struct{}

// ContextWithLogger attaches a logger to ctx for retrieval deeper in a call
// chain without threading it through every function signature.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// FromContext returns the logger attached to ctx, or slog.Default() if none
// was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(sessionLoggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
