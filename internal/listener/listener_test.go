package listener

import (
	"bufio"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func execPayload(cmd string) []byte {
	p := make([]byte, 4+len(cmd))
	binary.BigEndian.PutUint32(p, uint32(len(cmd)))
	copy(p[4:], cmd)
	return p
}

func TestParseExecPayload(t *testing.T) {
	if got := parseExecPayload(execPayload("uname -a")); got != "uname -a" {
		t.Errorf("parseExecPayload = %q, want %q", got, "uname -a")
	}
	if got := parseExecPayload(nil); got != "" {
		t.Errorf("parseExecPayload(nil) = %q, want empty", got)
	}
	if got := parseExecPayload([]byte{0, 0}); got != "" {
		t.Errorf("short payload should yield empty command, got %q", got)
	}
	// declared length longer than the payload body
	if got := parseExecPayload([]byte{0, 0, 0, 9, 'l', 's'}); got != "" {
		t.Errorf("truncated payload should yield empty command, got %q", got)
	}
}

func TestProbeBannerReadsFirstLine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		w := bufio.NewWriter(conn)
		w.WriteString("SSH-2.0-OpenSSH_6.0p1 Debian-4+deb7u2\r\n")
		w.Flush()
		time.Sleep(100 * time.Millisecond)
	}()

	banner, err := ProbeBanner(ln.Addr().String())
	if err != nil {
		t.Fatalf("ProbeBanner: %v", err)
	}
	if banner != "SSH-2.0-OpenSSH_6.0p1 Debian-4+deb7u2" {
		t.Errorf("banner = %q", banner)
	}
}

func TestProbeBannerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := ProbeBanner(addr); err == nil {
		t.Error("expected error probing a closed port")
	}
}

func TestSplitHostPort(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 55555}
	host, port := splitHostPort(addr)
	if host != "10.0.0.1" || port != 55555 {
		t.Errorf("splitHostPort = %q, %d", host, port)
	}
}
