package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, Config{Level: "warn", Format: "json"}, "solver")
	l.Info("dropped")
	l.Warn("kept", "routes", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "kept" || rec["service"] != "solver" || rec["routes"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewWriterText(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, Config{}, "").Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewRotatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.log")
	l, w := New(Config{File: path, MaxSizeMB: 1}, "solver")
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("writer is %T, want *lumberjack.Logger", w)
	}
	defer lj.Close()
	if lj.Filename != path || lj.MaxSize != 1 {
		t.Fatalf("unexpected rotation config %+v", lj)
	}
	l.Info("written")
}
