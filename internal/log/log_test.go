// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWriter_Text(t *testing.T) {
	t.Setenv("GO_ENV", "")
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")

	Info("hidden")
	Warn("shown", "distance", 150)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "distance=150") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestInitWriter_JSON(t *testing.T) {
	t.Setenv("GO_ENV", "")
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")

	With("component", "loop").Debug("tick")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "tick" || rec["component"] != "loop" {
		t.Errorf("record = %v", rec)
	}
}

func TestInitWriter_ProductionForcesJSON(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	var buf bytes.Buffer
	InitWriter(&buf, "info", "text")

	Error("boom")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output in production, got %q", buf.String())
	}
}
