// Package editor is a server-side line editor that reads raw bytes off an
// SSH channel and emits VT100 control sequences to keep the client
// terminal visually consistent, the way a real shell's readline would.
// It operates byte-at-a-time rather than on decoded runes: a multibyte
// UTF-8 input sequence is inserted and echoed one constituent byte at a
// time, and the terminal renders it correctly on its own.
package editor

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/lurehive/sshlure/internal/ansiutil"
	"github.com/lurehive/sshlure/internal/applog"
)

const maxHistory = 1000

// Completer is the tab-completion round trip a backend session provides.
// Satisfied by internal/backend.Client.
type Completer interface {
	ExecuteWithTab(cwd, cmd, user, pass string) (echoedCmd, rawOutput string, err error)
}

// Editor is a single interactive shell channel's line editor. Not safe
// for concurrent use; one REPL goroutine drives it sequentially.
type Editor struct {
	rw      io.ReadWriter
	br      *bufio.Reader
	backend Completer
	user    string
	pass    string

	prompt string
	cwd    string

	buf             []byte
	cursor          int
	history         []string
	historyIdx      int
	prevRenderedLen int
}

// New returns an Editor bound to rw (the SSH shell channel), using
// backend for tab-completion round trips.
func New(rw io.ReadWriter, backend Completer, user, pass, prompt, cwd string) *Editor {
	return &Editor{
		rw:         rw,
		br:         bufio.NewReader(rw),
		backend:    backend,
		user:       user,
		pass:       pass,
		prompt:     prompt,
		cwd:        cwd,
		historyIdx: -1,
	}
}

// Cwd returns the editor's current working directory, used to rebuild
// the prompt between commands.
func (e *Editor) Cwd() string { return e.cwd }

// SetCwd updates the working directory used in the prompt and in the
// next tab-completion round trip's cd target.
func (e *Editor) SetCwd(cwd string) { e.cwd = cwd }

// SetPrompt replaces the rendered prompt for the next Read.
func (e *Editor) SetPrompt(prompt string) { e.prompt = prompt }

// Cleanup resets SGR attributes on the client terminal. Call once on
// channel teardown.
func (e *Editor) Cleanup() {
	e.write("\x1b[0m")
}

func (e *Editor) write(s string) {
	io.WriteString(e.rw, s)
}

func (e *Editor) readByte() (byte, error) {
	return e.br.ReadByte()
}

// Read resets buffer/cursor/history-index, draws the prompt, and blocks
// byte-by-byte until the client sends a line terminator, returning the
// decoded line.
func (e *Editor) Read() (string, error) {
	e.buf = e.buf[:0]
	e.cursor = 0
	e.historyIdx = -1
	e.write("\r\x1b[2K" + e.prompt)

	for {
		b, err := e.readByte()
		if err != nil {
			return "", err
		}

		switch {
		case b == 0x1b:
			if err := e.handleEscape(); err != nil {
				return "", err
			}
		case b == '\n' || b == '\r':
			e.write("\r\n")
			line := strings.ToValidUTF8(string(e.buf), "�")
			e.pushHistory(line)
			return line, nil
		case b == 0x7f || b == 0x08:
			e.backspace()
		case b == '\t':
			e.tabComplete()
		default:
			e.insertByte(b)
		}
	}
}

func (e *Editor) pushHistory(line string) {
	if line == "" {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// handleEscape reads exactly two bytes after ESC and dispatches on them.
// Longer CSI sequences (e.g. "ESC[1;5D") desynchronize the reader by
// design: only the first two bytes after ESC are consumed here, and
// whatever follows is read back in on the next loop iterations as
// ordinary or control bytes.
func (e *Editor) handleEscape() error {
	b1, err := e.readByte()
	if err != nil {
		return err
	}
	b2, err := e.readByte()
	if err != nil {
		return err
	}
	if b1 != '[' {
		return nil
	}

	switch b2 {
	case 'A':
		e.historyUp()
	case 'B':
		e.historyDown()
	case 'C':
		if e.cursor < len(e.buf) {
			e.cursor++
			e.write("\x1b[C")
		}
	case 'D':
		if e.cursor > 0 {
			e.cursor--
			e.write("\x1b[D")
		}
	case '3':
		b3, err := e.readByte()
		if err != nil {
			return err
		}
		if b3 == '~' && e.cursor < len(e.buf) {
			e.deleteForward()
		}
	}
	return nil
}

func (e *Editor) historyUp() {
	if len(e.history) == 0 {
		return
	}
	if e.historyIdx == -1 {
		e.historyIdx = len(e.history) - 1
	} else if e.historyIdx > 0 {
		e.historyIdx--
	}
	e.buf = []byte(e.history[e.historyIdx])
	e.cursor = len(e.buf)
	e.redraw()
}

func (e *Editor) historyDown() {
	if e.historyIdx != -1 && e.historyIdx < len(e.history)-1 {
		e.historyIdx++
		e.buf = []byte(e.history[e.historyIdx])
		e.cursor = len(e.buf)
		e.redraw()
	}
}

func (e *Editor) backspace() {
	if e.cursor == 0 {
		return
	}
	e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
	e.cursor--
	if e.cursor == len(e.buf) {
		e.write("\b \b")
		return
	}
	tail := string(e.buf[e.cursor:])
	e.write("\b" + tail + " ")
	e.write(fmt.Sprintf("\x1b[%dD", len(tail)+1))
}

func (e *Editor) deleteForward() {
	e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)
	if e.cursor == len(e.buf) {
		e.write(" \b")
		return
	}
	tail := string(e.buf[e.cursor:])
	e.write(tail + " ")
	e.write(fmt.Sprintf("\x1b[%dD", len(tail)+1))
}

func (e *Editor) insertByte(b byte) {
	e.buf = append(e.buf[:e.cursor], append([]byte{b}, e.buf[e.cursor:]...)...)
	e.cursor++
	if e.cursor == len(e.buf) {
		e.write(string(b))
		return
	}
	tail := e.buf[e.cursor-1:]
	e.write(string(tail))
	if n := len(tail) - 1; n > 0 {
		e.write(fmt.Sprintf("\x1b[%dD", n))
	}
}

// redraw repaints the whole line from the prompt, erasing any stale
// tail left over from a previously longer render, then repositions the
// cursor.
func (e *Editor) redraw() {
	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(e.prompt)
	sb.Write(e.buf)

	if e.prevRenderedLen > len(e.buf) {
		diff := e.prevRenderedLen - len(e.buf)
		sb.WriteString(strings.Repeat(" ", diff))
		sb.WriteString(fmt.Sprintf("\x1b[%dD", diff))
	}

	if tailLen := len(e.buf) - e.cursor; tailLen > 0 {
		sb.WriteString(fmt.Sprintf("\x1b[%dD", tailLen))
	}

	e.write(sb.String())
	e.prevRenderedLen = len(e.buf)
}

// tabComplete implements the tab-completion round trip: probe the
// backend with the full input line, diff its echoed completion against
// the raw output, and splice the suggestion into the buffer after the
// last whitespace-delimited token.
func (e *Editor) tabComplete() {
	fullInput := strings.ToValidUTF8(string(e.buf), "�")
	fields := strings.Fields(fullInput)
	if len(fields) == 0 {
		return
	}
	lastToken := fields[len(fields)-1]

	echoedCmd, rawOutput, err := e.backend.ExecuteWithTab(e.cwd, fullInput+"\t", e.user, e.pass)
	if err != nil {
		applog.L().Debugw("tab completion probe failed", "error", err)
		return
	}

	cleaned := ansiutil.StripANSI(rawOutput)
	diff := ansiutil.CompletionDiff(strings.TrimSpace(echoedCmd), strings.TrimSpace(cleaned))
	if diff == "" {
		return
	}

	bufStr := string(e.buf)
	idx := strings.LastIndex(bufStr, lastToken)
	if idx == -1 {
		return
	}
	insertAt := idx + len(lastToken)

	newBuf := make([]byte, 0, len(e.buf)+len(diff))
	newBuf = append(newBuf, e.buf[:insertAt]...)
	newBuf = append(newBuf, diff...)
	newBuf = append(newBuf, e.buf[insertAt:]...)
	e.buf = newBuf
	e.cursor = insertAt + len(diff)
	e.redraw()
}
