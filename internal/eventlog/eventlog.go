// Package eventlog is the append-only JSON-lines event sink the honeypot
// deployment scrapes. The wire schema is fixed and hand-rolled rather
// than routed through the zap diagnostic logger (internal/applog), so
// this format never drifts with that logger's encoder config.
//
// Each write opens the file with O_APPEND|O_CREATE, writes one line, and
// closes it again.
package eventlog

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/lurehive/sshlure/internal/applog"
)

// Logger appends JSON-lines event records to a configured path. Writes are
// serialized so that concurrent workers never interleave partial lines;
// each call is a single atomic append.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New returns a Logger that appends to path.
func New(path string) *Logger {
	return &Logger{path: path}
}

type loginAttempt struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	EventID   string `json:"eventid"`
	SrcIP     string `json:"src_ip"`
	SrcPort   int    `json:"src_port"`
	DestIP    string `json:"dest_ip"`
	DestPort  int    `json:"dest_port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Protocol  string `json:"protocol"`
	Success   bool   `json:"success"`
}

type commandInput struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	EventID   string `json:"eventid"`
	SrcIP     string `json:"src_ip"`
	SrcPort   int    `json:"src_port"`
	Username  string `json:"username"`
	Command   string `json:"command"`
	Cwd       string `json:"cwd"`
	Protocol  string `json:"protocol"`
}

type sessionClose struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	EventID   string `json:"eventid"`
	SrcIP     string `json:"src_ip"`
	SrcPort   int    `json:"src_port"`
	Username  string `json:"username"`
	Duration  string `json:"duration"`
	Message   string `json:"message"`
	Protocol  string `json:"protocol"`
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// LoginAttempt records a login.attempt event.
func (l *Logger) LoginAttempt(srcIP string, srcPort int, destIP string, destPort int, user, pass string, success bool) {
	l.write(loginAttempt{
		Timestamp: nowISO(),
		Type:      "Paramiko",
		EventID:   "paramiko.login.attempt",
		SrcIP:     srcIP,
		SrcPort:   srcPort,
		DestIP:    destIP,
		DestPort:  destPort,
		Username:  user,
		Password:  pass,
		Protocol:  "ssh",
		Success:   success,
	})
}

// CommandInput records a command.input event.
func (l *Logger) CommandInput(srcIP string, srcPort int, user, command, cwd string) {
	l.write(commandInput{
		Timestamp: nowISO(),
		Type:      "Paramiko",
		EventID:   "paramiko.command.input",
		SrcIP:     srcIP,
		SrcPort:   srcPort,
		Username:  user,
		Command:   command,
		Cwd:       cwd,
		Protocol:  "ssh",
	})
}

// SessionClose records a session.close event. duration is formatted as
// "{n.nn}s".
func (l *Logger) SessionClose(srcIP string, srcPort int, user string, duration time.Duration, message string) {
	l.write(sessionClose{
		Timestamp: nowISO(),
		Type:      "Paramiko",
		EventID:   "paramiko.session.close",
		SrcIP:     srcIP,
		SrcPort:   srcPort,
		Username:  user,
		Duration:  formatDuration(duration),
		Message:   message,
		Protocol:  "ssh",
	})
}

// formatDuration renders seconds with exactly 2 decimals, e.g. "1.50s" or
// "12.34s".
func formatDuration(d time.Duration) string {
	rounded := math.Round(d.Seconds()*100) / 100
	return strconv.FormatFloat(rounded, 'f', 2, 64) + "s"
}

// write serializes entry as one JSON line and appends it to l.path under
// the logger's lock, guaranteeing each record lands as a single atomic
// write even when multiple session workers log concurrently.
func (l *Logger) write(entry any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		applog.L().Errorw("failed to marshal event", "error", err)
		return
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		applog.L().Errorw("failed to open event log", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		applog.L().Errorw("failed to write event log entry", "path", l.path, "error", err)
	}
}
