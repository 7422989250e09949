// Package backend is the SSH client side of the proxy: it opens
// short-lived sessions against a configured backend host:port, using
// password auth, and exposes four operations: recording a login
// attempt, running a command to completion, probing tab completion, and
// draining a held shell's pending output. Every operation dials its own
// connection and guarantees teardown via internal/cleanup, never sharing
// a session across two operations.
package backend

import (
	"bytes"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/lurehive/sshlure/internal/ansiutil"
	"github.com/lurehive/sshlure/internal/applog"
	"github.com/lurehive/sshlure/internal/cleanup"
	"github.com/lurehive/sshlure/internal/proxyerr"
)

const (
	connectTimeout    = 10 * time.Second
	shellReadTimeout  = 5 * time.Second
	flushPollInterval = 20 * time.Millisecond
	tabCollectWindow  = 1 * time.Second
	tabPollInterval   = 50 * time.Millisecond
	readChunkSize     = 1024
)

// cwdRE recovers the working directory from a "user@host:cwd$ " prompt
// line. Assumes the backend renders a "user@host:cwd$ " shape and
// fails closed to "~" when it doesn't match.
var cwdRE = regexp.MustCompile(`@[^:]+:(.*?)[$#] ?`)

// CommandResult is the recovered output and working directory of one
// ExecuteCommand round trip.
type CommandResult struct {
	Output string
	Cwd    string
}

// Client talks to one backend host:port.
type Client struct {
	host string
	port int

	mu sync.Mutex
	// held is never assigned by RecordLogin, ExecuteCommand, or
	// ExecuteWithTab (each of those opens and tears down its own
	// independent shell), so FlushBuffer is always a fast no-op in
	// practice. Kept as a field, rather than inlined away, so the no-op
	// is an observable invariant instead of a guess.
	held *heldShell
}

type heldShell struct {
	conn   net.Conn
	stdout io.Reader
}

// NewClient returns a Client for host:port.
func NewClient(host string, port int) *Client {
	return &Client{host: host, port: port}
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// shellSession is one connect+shell round trip torn down via guard.
type shellSession struct {
	conn    net.Conn
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	guard   cleanup.Guard
}

func (c *Client) dialClient(user, pass string) (*ssh.Client, net.Conn, error) {
	nc, err := net.DialTimeout("tcp", c.addr(), connectTimeout)
	if err != nil {
		return nil, nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.dial", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(nc, c.addr(), &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	})
	if err != nil {
		nc.Close()
		return nil, nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.handshake", err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nc, nil
}

// dialShell connects and opens an interactive shell; any failure at any
// stage tears down what was acquired and propagates.
func (c *Client) dialShell(user, pass string) (*shellSession, error) {
	client, nc, err := c.dialClient(user, pass)
	if err != nil {
		return nil, err
	}

	ss := &shellSession{conn: nc, client: client}
	ss.guard.SetConn(nc)
	ss.guard.SetClient(client)

	session, err := client.NewSession()
	if err != nil {
		ss.guard.Close()
		return nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.session", err)
	}
	ss.session = session
	ss.guard.SetChannel(session)

	stdin, err := session.StdinPipe()
	if err != nil {
		ss.guard.Close()
		return nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.stdin", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		ss.guard.Close()
		return nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.stdout", err)
	}
	ss.stdin, ss.stdout = stdin, stdout

	if err := session.Shell(); err != nil {
		ss.guard.Close()
		return nil, proxyerr.New(proxyerr.BackendUnavailable, "backend.shell", err)
	}

	return ss, nil
}

func (ss *shellSession) close() {
	ss.guard.Close()
}

func (ss *shellSession) send(s string) error {
	_, err := io.WriteString(ss.stdin, s)
	return err
}

// readChunk reads up to readChunkSize bytes with a 5s deadline enforced on
// the underlying TCP connection.
func (ss *shellSession) readChunk() ([]byte, error) {
	ss.conn.SetReadDeadline(time.Now().Add(shellReadTimeout))
	buf := make([]byte, readChunkSize)
	n, err := ss.stdout.Read(buf)
	if n > 0 {
		return buf[:n], err
	}
	return nil, err
}

func isPrompt(b []byte) bool {
	return bytes.Contains(b, []byte("$ ")) || bytes.Contains(b, []byte("# "))
}

// waitForPrompt terminates on the first chunk containing "$ " / "# ", or
// on EOF.
func (ss *shellSession) waitForPrompt() error {
	for {
		data, err := ss.readChunk()
		if isPrompt(data) {
			return nil
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return proxyerr.New(proxyerr.BackendLost, "backend.waitForPrompt", err)
		}
	}
}

// receiveUntilPrompt accumulates bytes until a chunk containing the prompt
// marker arrives (or EOF), returning the full accumulation and the chunk
// that carried the marker.
func (ss *shellSession) receiveUntilPrompt() (output, promptChunk []byte, err error) {
	for {
		data, rerr := ss.readChunk()
		if len(data) > 0 {
			output = append(output, data...)
			if isPrompt(data) {
				promptChunk = data
				return output, promptChunk, nil
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return output, promptChunk, nil
			}
			return output, promptChunk, proxyerr.New(proxyerr.BackendLost, "backend.receive", rerr)
		}
	}
}

// RecordLogin connects, attempts to open an interactive shell, then
// disconnects. Shell-open failure is swallowed since the connect itself
// is what records the attempt; a connect/handshake failure propagates so
// the caller can treat the login as unrecorded.
func (c *Client) RecordLogin(user, pass string) error {
	client, nc, err := c.dialClient(user, pass)
	if err != nil {
		return err
	}
	var g cleanup.Guard
	g.SetConn(nc)
	g.SetClient(client)
	defer g.Close()

	session, err := client.NewSession()
	if err != nil {
		applog.L().Debugw("shell not available during login record", "error", err)
		return nil
	}
	g.SetChannel(session)
	if err := session.Shell(); err != nil {
		applog.L().Debugw("shell not available during login record", "error", err)
	}
	return nil
}

// ExecuteCommand connects, opens a shell, waits for a prompt, optionally
// changes directory via dirCmd, runs cmd, and parses the recovered
// output/cwd.
func (c *Client) ExecuteCommand(cmd, user, pass, dirCmd string) (CommandResult, error) {
	ss, err := c.dialShell(user, pass)
	if err != nil {
		return CommandResult{}, err
	}
	defer ss.close()

	if err := ss.waitForPrompt(); err != nil {
		return CommandResult{}, err
	}

	if dirCmd != "" {
		if err := ss.send(dirCmd + "\n"); err != nil {
			return CommandResult{}, proxyerr.New(proxyerr.BackendLost, "backend.send.dircmd", err)
		}
		if err := ss.waitForPrompt(); err != nil {
			return CommandResult{}, err
		}
	}

	if err := ss.send(cmd + "\n"); err != nil {
		return CommandResult{}, proxyerr.New(proxyerr.BackendLost, "backend.send.cmd", err)
	}

	raw, promptChunk, err := ss.receiveUntilPrompt()
	if err != nil {
		return CommandResult{}, err
	}

	return parseCommandOutput(raw, promptChunk, cmd), nil
}

// parseCommandOutput drops echoed-command lines, cleans the prompt off
// the tail line, and recovers cwd from the prompt chunk via the
// @host:cwd$ regex.
func parseCommandOutput(raw, promptChunk []byte, sentCmd string) CommandResult {
	lines := bytes.Split(raw, []byte("\n"))
	cleaned := make([][]byte, 0, len(lines))

	for i, line := range lines {
		if strings.Contains(strings.TrimSpace(string(line)), sentCmd) {
			continue
		}
		if i == len(lines)-1 {
			cleaned = append(cleaned, []byte(ansiutil.RemovePrompt(string(line))))
		} else {
			cleaned = append(cleaned, line)
		}
	}

	output := strings.ToValidUTF8(string(bytes.Join(cleaned, []byte("\n"))), "�")

	cwd := "~"
	promptStr := strings.TrimSpace(strings.ToValidUTF8(string(promptChunk), "�"))
	if m := cwdRE.FindStringSubmatch(promptStr); m != nil {
		cwd = strings.TrimSpace(m[1])
	}

	return CommandResult{Output: output, Cwd: cwd}
}

// ExecuteWithTab drives the tab-completion probe: connect, cd into cwd,
// send the command with literal tabs stripped followed by one real tab,
// and collect bytes for up to 1s or until the echoed command plus
// trailing output is observed. Returns the original command argument and
// the raw (ANSI-inclusive) captured bytes.
func (c *Client) ExecuteWithTab(cwd, cmd, user, pass string) (echoedCmd, rawOutput string, err error) {
	ss, err := c.dialShell(user, pass)
	if err != nil {
		return "", "", err
	}
	defer ss.close()

	if err := ss.waitForPrompt(); err != nil {
		return "", "", err
	}

	if err := ss.send("cd " + cwd + "\n"); err != nil {
		return "", "", proxyerr.New(proxyerr.BackendLost, "backend.send.cd", err)
	}
	if err := ss.waitForPrompt(); err != nil {
		return "", "", err
	}

	rawCmd := strings.ReplaceAll(cmd, "\t", "")
	if err := ss.send(rawCmd + "\t"); err != nil {
		return "", "", proxyerr.New(proxyerr.BackendLost, "backend.send.tab", err)
	}

	out := ss.collectTabOutput(rawCmd)
	return cmd, string(out), nil
}

// collectTabOutput polls for up to tabCollectWindow, stopping early once
// the raw command has appeared (post ANSI-strip) with trailing output.
// Read timeouts are not treated as fatal here: the 1s wall-clock budget
// is the only deadline that matters for this probe.
func (ss *shellSession) collectTabOutput(rawCmd string) []byte {
	deadline := time.Now().Add(tabCollectWindow)
	var output []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return output
		}
		slice := tabPollInterval
		if remaining < slice {
			slice = remaining
		}
		ss.conn.SetReadDeadline(time.Now().Add(slice))

		buf := make([]byte, readChunkSize)
		n, err := ss.stdout.Read(buf)
		if n > 0 {
			output = append(output, buf[:n]...)
			cleaned := ansiutil.StripANSI(string(output))
			if idx := strings.LastIndex(cleaned, rawCmd); idx != -1 && len(cleaned) > idx+len(rawCmd) {
				return output
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return output
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// FlushBuffer drains bytes pending on a held shell until timeout elapses,
// polling every 20ms. No operation here persists a shell across calls (see
// the held field's doc comment), so this is always a fast no-op, but the
// polling loop is kept intact for the case a future caller does hold one.
func (c *Client) FlushBuffer(timeout time.Duration) {
	c.mu.Lock()
	held := c.held
	c.mu.Unlock()
	if held == nil {
		return
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		held.conn.SetReadDeadline(time.Now().Add(tabPollInterval))
		buf := make([]byte, readChunkSize)
		_, err := held.stdout.Read(buf)
		if err != nil && !isTimeout(err) {
			return
		}
		time.Sleep(flushPollInterval)
	}
}
