package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "branch", "core")
	Error("shown error", errors.New("boom"), "path", "/tmp/a b")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] shown warn branch=core") {
		t.Errorf("missing warn line, got:\n%s", out)
	}
	if !strings.Contains(out, `[ERROR] shown error err=boom path="/tmp/a b"`) {
		t.Errorf("missing error line, got:\n%s", out)
	}
}

func TestFormatKVsOddArgs(t *testing.T) {
	got := formatKVs("a", 1, "dangling")
	if got != " a=1" {
		t.Errorf("formatKVs = %q, want %q", got, " a=1")
	}
}
