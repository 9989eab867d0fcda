// Package logging wires zap for the whole application. Components take a
// *zap.Logger at construction and fall back to zap.NewNop when given nil,
// so library callers and tests stay quiet unless they opt in.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the root logger is built.
type Options struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string
	// Format is "console" or "json". Default console.
	Format string
	// File, when set, appends logs to this path instead of stderr.
	File string
}

// New builds the root logger from Options.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(strings.ToLower(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	if opts.Format == "" || opts.Format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
	}
	cfg.ErrorOutputPaths = cfg.OutputPaths

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Named returns a component child of base, or a nop logger when base is nil.
// Component names in use: router, extract, llm, store, tools, slots,
// facts, temporal, prompts, server, chat.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}

// OrNop returns l, or a nop logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
