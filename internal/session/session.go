// Package session orchestrates one authenticated interactive shell
// channel end to end: prompt setup, MOTD banner, the read-execute-print
// loop against the backend, and guaranteed teardown. Orchestrator.Run
// always reaches its teardown via defer, regardless of which exit path
// is taken.
package session

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/lurehive/sshlure/internal/ansiutil"
	"github.com/lurehive/sshlure/internal/backend"
	"github.com/lurehive/sshlure/internal/editor"
	"github.com/lurehive/sshlure/internal/eventlog"
	"github.com/lurehive/sshlure/internal/motd"
	"github.com/lurehive/sshlure/internal/promptfmt"
)

const backendLostMessage = "Connection to backend lost. Session terminated.\r\n"

// Backend is the subset of internal/backend.Client's operations an
// orchestrator and the editor it builds need. Declared here (rather
// than requiring the concrete type) so tests can substitute a fake.
type Backend interface {
	editor.Completer
	ExecuteCommand(cmd, user, pass, dirCmd string) (backend.CommandResult, error)
	FlushBuffer(timeout time.Duration)
}

// Context is the per-connection identity an Orchestrator needs: where
// the client connected from, who it authenticated as, and when the
// session started (for the final duration event).
type Context struct {
	SrcIP   string
	SrcPort int
	User    string
	Pass    string
	Start   time.Time
}

// Orchestrator drives one shell channel's lifetime.
type Orchestrator struct {
	channel  io.ReadWriteCloser
	backend  Backend
	logger   *eventlog.Logger
	motdPath string
	ctx      Context
}

// New returns an Orchestrator for channel, using backendClient for
// command execution and logger for the command.input and session.close
// events.
func New(channel io.ReadWriteCloser, backendClient Backend, logger *eventlog.Logger, motdPath string, ctx Context) *Orchestrator {
	return &Orchestrator{
		channel:  channel,
		backend:  backendClient,
		logger:   logger,
		motdPath: motdPath,
		ctx:      ctx,
	}
}

// Run sets up the prompt and editor, sends the MOTD, then loops reading
// and executing commands against the backend until the client
// disconnects, sends exit/quit, or the backend is lost, reaching
// teardown on every one of those exit paths.
func (o *Orchestrator) Run() {
	hostname := promptfmt.TruncateHost(os.Getenv("HOST_NAME"))
	cwd := "~"
	prompt := promptfmt.Render(o.ctx.User, hostname, cwd)

	ed := editor.New(o.channel, o.backend, o.ctx.User, o.ctx.Pass, prompt, cwd)
	defer o.teardown(ed)

	o.backend.FlushBuffer(1 * time.Second)
	o.sendMOTD(hostname)

	for {
		cmd, err := ed.Read()
		if err != nil {
			return
		}
		if cmd == "" {
			continue
		}

		o.logger.CommandInput(o.ctx.SrcIP, o.ctx.SrcPort, o.ctx.User, cmd, ed.Cwd())

		if isExitCommand(cmd) {
			return
		}

		dirCmd := dirCommand(ed.Cwd())
		result, err := o.backend.ExecuteCommand(cmd, o.ctx.User, o.ctx.Pass, dirCmd)
		if err != nil {
			io.WriteString(o.channel, backendLostMessage)
			return
		}

		ed.SetCwd(result.Cwd)
		ed.SetPrompt(promptfmt.Render(o.ctx.User, hostname, result.Cwd))
		io.WriteString(o.channel, ansiutil.StripANSI(result.Output))
	}
}

func (o *Orchestrator) sendMOTD(hostname string) {
	io.WriteString(o.channel, "\r\n")
	for _, line := range motd.Load(o.motdPath, hostname) {
		io.WriteString(o.channel, strings.TrimRight(line, " \t\r\n")+"\r\n")
		time.Sleep(5 * time.Millisecond)
	}
}

func (o *Orchestrator) teardown(ed *editor.Editor) {
	duration := time.Since(o.ctx.Start)
	o.logger.SessionClose(o.ctx.SrcIP, o.ctx.SrcPort, o.ctx.User, duration, "Session closed")
	ed.Cleanup()
	o.channel.Close()
}

func dirCommand(cwd string) string {
	if cwd == "" || cwd == "~" {
		return ""
	}
	return "cd " + cwd
}

func isExitCommand(cmd string) bool {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "exit", "quit", "exit;", "quit;":
		return true
	}
	return false
}
