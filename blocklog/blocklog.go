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

// Package blocklog provides the leveled, structured logging used across the
// buffer cache and inode layer. It is a thin wrapper over log/slog so tests
// can swap in a buffer-backed logger and assert on emitted records.
package blocklog

import (
	"context"
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLogger replaces the package-level logger, e.g. with one backed by a
// bytes.Buffer in tests.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the current package-level logger.
func Logger() *slog.Logger {
	return logger
}

func Debug(msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelError, msg, args...)
}
