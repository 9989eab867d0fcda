package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDefaults(t *testing.T) {
	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New(default) error: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("default logger should enable info level")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("default logger should not enable debug level")
	}
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		wantErr bool
	}{
		{"debug", true, false},
		{"info", false, false},
		{"warn", false, false},
		{"error", false, false},
		{"DEBUG", true, false},
		{"loud", false, true},
	}

	for _, tt := range tests {
		logger, err := New(Options{Level: tt.level})
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(level=%q) expected error, got nil", tt.level)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(level=%q) error: %v", tt.level, err)
			continue
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
			t.Errorf("New(level=%q) debug enabled = %v, want %v", tt.level, got, tt.debugOn)
		}
	}
}

func TestNamedNilBase(t *testing.T) {
	logger := Named(nil, "router")
	if logger == nil {
		t.Fatal("Named(nil) returned nil, want nop logger")
	}
	// Must not panic.
	logger.Info("quiet")
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	base, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if OrNop(base) != base {
		t.Error("OrNop(base) should return base unchanged")
	}
}
