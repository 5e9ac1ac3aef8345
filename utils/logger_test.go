package utils

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestDebugGate(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		enabled bool
	}{
		{"default off", "", false},
		{"info stays off", "info", false},
		{"debug on", "debug", true},
		{"case insensitive", "DEBUG", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			l := NewLogger()
			if l.debugEnabled != tt.enabled {
				t.Errorf("LOG_LEVEL=%q: debugEnabled = %v, want %v", tt.level, l.debugEnabled, tt.enabled)
			}
		})
	}
}

func TestDebugSilentWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger()
	l.debug = log.New(&buf, "", 0)

	l.debugEnabled = false
	l.Debug("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output with debug disabled, got %q", buf.String())
	}

	l.debugEnabled = true
	l.Debug("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("expected debug output when enabled, got %q", buf.String())
	}
}
