// Command sshlure runs the SSH man-in-the-middle honeypot proxy: it
// accepts inbound client connections, authenticates them against a
// local credential policy, records login attempts against heralding,
// and brokers interactive shells (and one-shot exec) against cowrie. It
// installs no signal handling and runs until killed.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/lurehive/sshlure/internal/applog"
	"github.com/lurehive/sshlure/internal/authpolicy"
	"github.com/lurehive/sshlure/internal/backend"
	"github.com/lurehive/sshlure/internal/config"
	"github.com/lurehive/sshlure/internal/eventlog"
	"github.com/lurehive/sshlure/internal/listener"
)

func main() {
	configPath := flag.String("config", "/etc/sshlure/config.toml", "path to the process TOML config file")
	flag.Parse()

	zapLogger, err := applog.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	applog.Init(zapLogger)
	defer zapLogger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		applog.L().Fatalw("failed to load config", "path", *configPath, "error", err)
	}

	hostKeyData, err := os.ReadFile(cfg.Files.HostKeyFile)
	if err != nil {
		applog.L().Fatalw("failed to read host key", "path", cfg.Files.HostKeyFile, "error", err)
	}
	hostKey, err := ssh.ParsePrivateKey(hostKeyData)
	if err != nil {
		applog.L().Fatalw("failed to parse host key", "path", cfg.Files.HostKeyFile, "error", err)
	}

	policy, err := authpolicy.Load(cfg.Files.CredentialFile)
	if err != nil {
		applog.L().Fatalw("failed to load credential policy", "path", cfg.Files.CredentialFile, "error", err)
	}
	applog.L().Infow("credential policy loaded", "rules", policy.Len())

	eventLog := eventlog.New(cfg.Files.EventLogFile)
	heralding := backend.NewClient(cfg.Backends.HeraldingHost, cfg.Backends.HeraldingPort)
	cowrie := backend.NewClient(cfg.Backends.CowrieHost, cfg.Backends.CowriePort)

	bannerVersion, err := listener.ProbeBanner(cfg.CowrieAddr())
	if err != nil {
		applog.L().Warnw("banner probe failed, falling back to library default", "error", err)
		bannerVersion = ""
	}

	l := listener.New(cfg.Listen.Addr, cfg.Listen.Backlog, hostKey, policy, eventLog, cfg.Files.MOTDFile, heralding, cowrie)

	applog.L().Infow("starting sshlure", "addr", cfg.Listen.Addr, "backlog", cfg.Listen.Backlog)
	if err := l.Serve(context.Background(), bannerVersion); err != nil {
		applog.L().Fatalw("listener exited", "error", err)
	}
}
