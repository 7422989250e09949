package motd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFormatsTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motd.txt")
	if err := os.WriteFile(path, []byte("Welcome to {hostname}\nTime is {now}\n"), 0644); err != nil {
		t.Fatalf("write motd: %v", err)
	}

	lines := Load(path, "box")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "box:") {
		t.Errorf("expected hostname substitution, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "UTC") {
		t.Errorf("expected {now} substitution, got %q", lines[1])
	}
}

func TestLoadFallbackOnMissingFile(t *testing.T) {
	lines := Load(filepath.Join(t.TempDir(), "missing.txt"), "box")
	if len(lines) != 1 {
		t.Fatalf("expected 1 fallback line, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Welcome. (Host: 192.168.100.3 Time: ") {
		t.Errorf("unexpected fallback line: %q", lines[0])
	}
}
