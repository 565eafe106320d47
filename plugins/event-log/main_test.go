package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		path, err := logPath(nil)
		if err != nil {
			t.Fatalf("logPath() error = %v", err)
		}
		if filepath.Base(path) != defaultLogFile {
			t.Errorf("expected %s, got %s", defaultLogFile, path)
		}
	})

	t.Run("configured", func(t *testing.T) {
		path, err := logPath(json.RawMessage(`{"file":"/var/log/lot.log"}`))
		if err != nil {
			t.Fatalf("logPath() error = %v", err)
		}
		if path != "/var/log/lot.log" {
			t.Errorf("expected /var/log/lot.log, got %s", path)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := logPath(json.RawMessage(`[1]`)); err == nil {
			t.Error("expected error for invalid config")
		}
	})
}

func TestAppendRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	at := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

	for _, ev := range []string{"ENTER", "EXIT"} {
		if err := appendRecord(path, Request{Event: ev, Count: 1, Time: at}); err != nil {
			t.Fatalf("appendRecord() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var rec record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Event != "EXIT" || !rec.Time.Equal(at) {
		t.Errorf("unexpected record %+v", rec)
	}

	if err := appendRecord(path, Request{}); err == nil {
		t.Error("expected error for missing event")
	}
}
