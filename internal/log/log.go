// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package log holds the process wide zap logger.
// Component loggers that need key/value output use hclog instead.
package log

import (
	"context"
	"os"
	"sync"

	"github.com/pbinitiative/zenexec/internal/appcontext"
	"github.com/pbinitiative/zenexec/internal/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const levelEnv = "LOG_LEVEL"

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// Init configures the global logger. LOG_LEVEL selects the level, info by default.
// The PROD profile logs JSON, other profiles log to the console.
func Init() {
	level := zapcore.InfoLevel
	if lvl, ok := os.LookupEnv(levelEnv); ok {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			level = parsed
		}
	}
	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(level)
	conf.Encoding = "console"
	if profile.Current.StructuredLogs() {
		conf.Encoding = "json"
	}
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	l, err := conf.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	SetLogger(l)
}

// SetLogger replaces the global logger, tests use it with zaptest or observer cores.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func withContext(ctx context.Context) *zap.SugaredLogger {
	l := current()
	if ctx == nil {
		return l
	}
	if key, ok := appcontext.GetExecutionContext(ctx); ok {
		l = l.With("executionKey", key)
	}
	return l
}

func Info(msg string, args ...any) {
	current().Infof(msg, args...)
}

func Error(msg string, args ...any) {
	current().Errorf(msg, args...)
}

func Infof(ctx context.Context, msg string, args ...any) {
	withContext(ctx).Infof(msg, args...)
}

func Debugf(ctx context.Context, msg string, args ...any) {
	withContext(ctx).Debugf(msg, args...)
}

func Warnf(ctx context.Context, msg string, args ...any) {
	withContext(ctx).Warnf(msg, args...)
}

func Errorf(ctx context.Context, msg string, args ...any) {
	withContext(ctx).Errorf(msg, args...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}
