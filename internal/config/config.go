// Package config loads the proxy's process configuration from a TOML
// file: the listen address and backlog, the two backend SSH endpoints,
// and the external file paths (credential file, MOTD file, event log,
// host key).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the proxy's process configuration. The zero value has empty
// addresses and paths and zero ports; Default() returns the baseline
// values that Load overlays the file onto.
type Config struct {
	Listen   ListenConfig   `toml:"listen"`
	Backends BackendsConfig `toml:"backends"`
	Files    FilesConfig    `toml:"files"`
}

// ListenConfig configures the front-end SSH listener.
type ListenConfig struct {
	Addr    string `toml:"addr"`
	Backlog int    `toml:"backlog"`
}

// BackendsConfig configures the two backend SSH endpoints.
type BackendsConfig struct {
	HeraldingHost string `toml:"heralding_host"`
	HeraldingPort int    `toml:"heralding_port"`
	CowrieHost    string `toml:"cowrie_host"`
	CowriePort    int    `toml:"cowrie_port"`
}

// FilesConfig configures the external file paths: credentials, MOTD,
// event log, and host key.
type FilesConfig struct {
	CredentialFile string `toml:"credential_file"`
	MOTDFile       string `toml:"motd_file"`
	EventLogFile   string `toml:"event_log_file"`
	HostKeyFile    string `toml:"host_key_file"`
}

// Default returns the configuration's baseline listen address, backend
// hosts/ports, and file paths, used whenever no config file overrides them.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:    "0.0.0.0:22",
			Backlog: 100,
		},
		Backends: BackendsConfig{
			HeraldingHost: "heralding",
			HeraldingPort: 22,
			CowrieHost:    "cowrie",
			CowriePort:    2222,
		},
		Files: FilesConfig{
			CredentialFile: "./config/user.txt",
			MOTDFile:       "/config/motd.txt",
			EventLogFile:   "/var/log/paramiko/paramiko.log",
			HostKeyFile:    "/certs/ssh_host_rsa_key",
		},
	}
}

// Load reads path and overlays it onto Default(). A missing file is not
// an error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// CowrieAddr returns "host:port" for the cowrie backend.
func (c *Config) CowrieAddr() string {
	return fmt.Sprintf("%s:%d", c.Backends.CowrieHost, c.Backends.CowriePort)
}

// HeraldingAddr returns "host:port" for the heralding backend.
func (c *Config) HeraldingAddr() string {
	return fmt.Sprintf("%s:%d", c.Backends.HeraldingHost, c.Backends.HeraldingPort)
}
