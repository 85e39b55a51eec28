package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"debug config logs debug entries", true, true},
		{"production config starts at info", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger(%v): %v", tt.debug, err)
			}
			defer func() { _ = logger.Sync() }()

			if logger.Name() != "simstore" {
				t.Errorf("Name() = %q, want simstore", logger.Name())
			}
			if got := logger.Core().Enabled(zap.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !logger.Core().Enabled(zap.WarnLevel) {
				t.Error("warn level disabled; removal failures would be dropped")
			}
		})
	}
}

func TestNewLogger_NamedChildren(t *testing.T) {
	logger, err := NewLogger(false)
	if err != nil {
		t.Fatal(err)
	}
	if got := logger.Named("server").Name(); got != "simstore.server" {
		t.Errorf("child name = %q, want simstore.server", got)
	}
}
