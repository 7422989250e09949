// Package listener is the proxy's TCP accept loop and per-connection SSH
// server handshake: it binds the listen address, negotiates one SSH
// server connection per accepted socket with a restricted algorithm
// set, and routes the first post-auth channel request to either the
// one-shot exec path or the interactive session orchestrator.
//
// The server role is modeled as an explicit capability set (an auth
// callback, a channel-accept step, and a first-request dispatch) rather
// than a subclassed handler object.
package listener

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/lurehive/sshlure/internal/ansiutil"
	"github.com/lurehive/sshlure/internal/applog"
	"github.com/lurehive/sshlure/internal/authpolicy"
	"github.com/lurehive/sshlure/internal/backend"
	"github.com/lurehive/sshlure/internal/eventlog"
	"github.com/lurehive/sshlure/internal/proxyerr"
	"github.com/lurehive/sshlure/internal/registry"
	"github.com/lurehive/sshlure/internal/session"
)

const (
	channelAcceptTimeout = 20 * time.Second
	dispatchWaitTimeout  = 1 * time.Second
	bannerProbeTimeout   = 5 * time.Second
)

// Restricted algorithm set accepted during the SSH handshake. Host key
// algorithm negotiation (RSA-SHA2-512/256/SSH-RSA) is handled by the ssh package
// itself based on the loaded host key's type and the client's
// server-sig-algs extension; the library exposes no separate knob to
// pin it further, so only cipher/MAC/KEX are configured here.
var (
	allowedCiphers = []string{
		"aes128-ctr", "aes192-ctr", "aes256-ctr",
		"aes128-cbc", "aes192-cbc", "aes256-cbc",
	}
	allowedMACs = []string{
		"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1",
	}
	allowedKEX = []string{
		"ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521",
		"diffie-hellman-group-exchange-sha256",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group16-sha512",
		"diffie-hellman-group14-sha1",
	}
)

// Listener accepts inbound client connections and dispatches each one to
// either the exec path or a session.Orchestrator.
type Listener struct {
	addr     string
	backlog  int
	hostKey  ssh.Signer
	policy   *authpolicy.Policy
	eventLog *eventlog.Logger
	motdPath string

	heralding *backend.Client
	cowrie    *backend.Client

	sessions *registry.Map[string, time.Time]
}

// New returns a Listener bound to addr (not yet listening), with backlog
// pending connections queued by the kernel before accept() is called.
func New(addr string, backlog int, hostKey ssh.Signer, policy *authpolicy.Policy, eventLog *eventlog.Logger, motdPath string, heralding, cowrie *backend.Client) *Listener {
	return &Listener{
		addr:      addr,
		backlog:   backlog,
		hostKey:   hostKey,
		policy:    policy,
		eventLog:  eventLog,
		motdPath:  motdPath,
		heralding: heralding,
		cowrie:    cowrie,
		sessions:  registry.New[string, time.Time](),
	}
}

// ProbeBanner opens a raw TCP connection to addr and reads its first
// line, to be used verbatim as this listener's own SSH server version
// string.
func ProbeBanner(addr string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, bannerProbeTimeout)
	if err != nil {
		return "", proxyerr.New(proxyerr.BackendUnavailable, "listener.probeBanner", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(bannerProbeTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", proxyerr.New(proxyerr.BackendUnavailable, "listener.probeBanner", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

// ActiveSessions returns the number of connections currently past
// handshake and channel accept; handleConn registers one entry for the
// lifetime of its dispatch loop.
func (l *Listener) ActiveSessions() int {
	return l.sessions.Len()
}

func (l *Listener) serverConfig(bannerVersion string) *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		ServerVersion:    bannerVersion,
		PasswordCallback: l.passwordCallback,
		Config: ssh.Config{
			Ciphers:      allowedCiphers,
			MACs:         allowedMACs,
			KeyExchanges: allowedKEX,
		},
	}
	cfg.AddHostKey(l.hostKey)
	return cfg
}

func (l *Listener) passwordCallback(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	user := conn.User()
	pass := string(password)

	granted, _ := l.policy.Authenticate(user, pass)

	if err := l.heralding.RecordLogin(user, pass); err != nil {
		applog.L().Debugw("heralding login record failed", "user", user, "error", err)
	}

	srcIP, srcPort := splitHostPort(conn.RemoteAddr())
	destIP, destPort := splitHostPort(conn.LocalAddr())
	l.eventLog.LoginAttempt(srcIP, srcPort, destIP, destPort, user, pass, granted)

	if !granted {
		return nil, proxyerr.New(proxyerr.AuthFailure, "listener.auth", fmt.Errorf("credentials rejected for %s", user))
	}
	return &ssh.Permissions{Extensions: map[string]string{"password": pass}}, nil
}

// Serve binds the listen address with the configured backlog and runs
// the accept loop until ctx is canceled or the bind fails; otherwise it
// runs until killed.
func (l *Listener) Serve(ctx context.Context, bannerVersion string) error {
	ln, err := listenTCP(l.addr, l.backlog)
	if err != nil {
		return proxyerr.New(proxyerr.HandshakeFailure, "listener.bind", err)
	}
	defer ln.Close()

	applog.L().Infow("listening", "addr", l.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			applog.L().Warnw("accept failed", "error", err)
			continue
		}
		go l.handleConn(nc, bannerVersion)
	}
}

// handleConn runs the per-connection worker: handshake, one channel,
// first-request dispatch. Every exit path closes whatever was acquired.
func (l *Listener) handleConn(nc net.Conn, bannerVersion string) {
	setCork(nc, true)
	sshConn, chans, reqs, err := ssh.NewServerConn(nc, l.serverConfig(bannerVersion))
	setCork(nc, false)
	if err != nil {
		applog.L().Infow("ssh handshake failed", "remote", nc.RemoteAddr(), "error", err)
		nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	newChannel, ok := l.acceptChannel(chans)
	if !ok {
		sshConn.Close()
		return
	}
	if newChannel.ChannelType() != "session" {
		newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
		sshConn.Close()
		return
	}
	channel, requests, err := newChannel.Accept()
	if err != nil {
		sshConn.Close()
		return
	}

	user := sshConn.User()
	pass := sshConn.Permissions.Extensions["password"]
	srcIP, srcPort := splitHostPort(sshConn.RemoteAddr())
	start := time.Now()

	sessionKey := fmt.Sprintf("%s:%d", srcIP, srcPort)
	l.sessions.Set(sessionKey, start)
	release := func() {
		l.sessions.Delete(sessionKey)
		sshConn.Close()
	}

	req, ok := l.waitForDispatchRequest(requests)
	if !ok {
		channel.Close()
		release()
		return
	}
	if req.WantReply {
		req.Reply(true, nil)
	}
	go ssh.DiscardRequests(requests)

	switch req.Type {
	case "exec":
		// The exec worker owns the channel and connection from here;
		// this worker returns as soon as it has dispatched.
		go func() {
			defer release()
			l.handleExec(channel, user, pass, req.Payload)
		}()
	case "shell":
		defer release()
		ctx := session.Context{SrcIP: srcIP, SrcPort: srcPort, User: user, Pass: pass, Start: start}
		orch := session.New(channel, l.cowrie, l.eventLog, l.motdPath, ctx)
		orch.Run()
	}
}

func (l *Listener) acceptChannel(chans <-chan ssh.NewChannel) (ssh.NewChannel, bool) {
	select {
	case ch, ok := <-chans:
		return ch, ok
	case <-time.After(channelAcceptTimeout):
		return nil, false
	}
}

// waitForDispatchRequest drains non-dispatch requests (pty-req,
// env, window-change, acking each so a well-behaved client proceeds to
// send shell/exec) until one of those two arrives or the 1-second
// dispatch window elapses.
func (l *Listener) waitForDispatchRequest(requests <-chan *ssh.Request) (*ssh.Request, bool) {
	timer := time.NewTimer(dispatchWaitTimeout)
	defer timer.Stop()
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return nil, false
			}
			if req.Type == "shell" || req.Type == "exec" {
				return req, true
			}
			if req.WantReply {
				req.Reply(true, nil)
			}
		case <-timer.C:
			return nil, false
		}
	}
}

// handleExec runs the one-shot exec path: parse the command payload, run
// it against cowrie, write output (or a failure message) and the exit
// status, then close the channel.
func (l *Listener) handleExec(channel ssh.Channel, user, pass string, payload []byte) {
	defer channel.Close()

	cmd := parseExecPayload(payload)
	result, err := l.cowrie.ExecuteCommand(cmd, user, pass, "")

	var exitStatus uint32
	if err != nil {
		io.WriteString(channel.Stderr(), "Connection to backend lost. Session terminated.\r\n")
		exitStatus = 1
	} else {
		io.WriteString(channel, ansiutil.StripANSI(result.Output))
	}

	var status [4]byte
	binary.BigEndian.PutUint32(status[:], exitStatus)
	channel.SendRequest("exit-status", false, status[:])
}

func parseExecPayload(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if uint32(len(payload)-4) < n {
		return ""
	}
	return string(payload[4 : 4+n])
}

func splitHostPort(addr net.Addr) (string, int) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
