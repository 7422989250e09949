package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecPaths(t *testing.T) {
	cfg := Default()
	if cfg.Listen.Addr != "0.0.0.0:22" {
		t.Errorf("Listen.Addr = %q", cfg.Listen.Addr)
	}
	if cfg.Files.CredentialFile != "./config/user.txt" {
		t.Errorf("CredentialFile = %q", cfg.Files.CredentialFile)
	}
	if cfg.CowrieAddr() != "cowrie:2222" {
		t.Errorf("CowrieAddr = %q", cfg.CowrieAddr())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != Default().Listen.Addr {
		t.Errorf("expected default listen addr, got %q", cfg.Listen.Addr)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	body := `
[listen]
addr = "0.0.0.0:2200"

[backends]
cowrie_host = "cowrie2"
cowrie_port = 2223
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != "0.0.0.0:2200" {
		t.Errorf("Listen.Addr = %q", cfg.Listen.Addr)
	}
	if cfg.CowrieAddr() != "cowrie2:2223" {
		t.Errorf("CowrieAddr = %q", cfg.CowrieAddr())
	}
	// unspecified fields keep their defaults
	if cfg.Files.HostKeyFile != Default().Files.HostKeyFile {
		t.Errorf("expected default host key file to survive partial overlay")
	}
}
