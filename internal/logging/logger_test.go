package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"projecttracker/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("store opened", zap.String("driver", "fs"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "store opened" || entry["driver"] != "fs" || entry["ts"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logger.Debug("visible")
	_ = logger.Sync()
	if !strings.Contains(buf.String(), "visible") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("New should reject unknown level")
	}
}

func TestObservedAndHelpers(t *testing.T) {
	logger, logs := NewObserved()
	logger.Info("user added", RedactedString("password", "secret"))
	entries := logs.FilterMessage("user added").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if v := entries[0].ContextMap()["password"]; v != "[REDACTED:6]" {
		t.Fatalf("unexpected redaction %v", v)
	}
	if OrNop(nil) == nil || OrNop(logger) != logger {
		t.Fatalf("OrNop misbehaves")
	}
}
