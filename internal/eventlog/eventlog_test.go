package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoginAttemptWritesOneLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l := New(path)
	l.LoginAttempt("10.0.0.1", 4444, "0.0.0.0", 22, "admin", "hunter2", true)

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	rec := lines[0]
	if rec["eventid"] != "paramiko.login.attempt" {
		t.Errorf("eventid = %v", rec["eventid"])
	}
	if rec["protocol"] != "ssh" {
		t.Errorf("protocol = %v", rec["protocol"])
	}
	if rec["success"] != true {
		t.Errorf("success = %v", rec["success"])
	}
}

func TestCommandInputAndSessionCloseAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l := New(path)
	l.CommandInput("10.0.0.1", 4444, "bob", "ls -la", "/tmp")
	l.SessionClose("10.0.0.1", 4444, "bob", 1500*time.Millisecond, "Session closed")

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["eventid"] != "paramiko.command.input" {
		t.Errorf("first record eventid = %v", lines[0]["eventid"])
	}
	if lines[1]["duration"] != "1.50s" {
		t.Errorf("duration = %v, want 1.50s", lines[1]["duration"])
	}
}
