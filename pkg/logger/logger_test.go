package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestInitWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Level:    "info",
		File:     filepath.Join(dir, "app.log"),
		JSONFile: filepath.Join(dir, "app.json.log"),
	}
	if err := Init(opts); err != nil {
		t.Fatal(err)
	}
	defer SetLogger(zap.NewNop())

	Debug("скрыто")
	Warn("свечи недоступны", zap.String("symbol", "ETHUSDT"))
	_ = GetLogger().Sync()

	readable, err := os.ReadFile(opts.File)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(readable), "свечи недоступны") || strings.Contains(string(readable), "скрыто") {
		t.Errorf("readable log = %q", readable)
	}

	data, err := os.ReadFile(opts.JSONFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("json lines = %d, want 1", len(lines))
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["symbol"] != "ETHUSDT" || entry["msg"] != "свечи недоступны" {
		t.Errorf("entry = %v", entry)
	}
	if _, err := time.Parse(TimeLayout, entry["ts"].(string)); err != nil {
		t.Errorf("ts %q does not match layout: %v", entry["ts"], err)
	}
	if caller, _ := entry["caller"].(string); !strings.HasPrefix(caller, "logger/logger_test.go") {
		t.Errorf("caller = %q, should point at the test", caller)
	}
}

func TestTruncate(t *testing.T) {
	dir := t.TempDir()
	opts := Options{File: filepath.Join(dir, "app.log"), JSONFile: filepath.Join(dir, "app.json.log"), Truncate: true}
	if err := os.WriteFile(opts.JSONFile, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Init(opts); err != nil {
		t.Fatal(err)
	}
	defer SetLogger(zap.NewNop())

	data, _ := os.ReadFile(opts.JSONFile)
	if len(data) != 0 {
		t.Errorf("json log not truncated: %q", data)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	err := Init(Options{Level: "loud", File: filepath.Join(dir, "a"), JSONFile: filepath.Join(dir, "b")})
	if err == nil {
		t.Error("expected error for unknown level")
	}
}
