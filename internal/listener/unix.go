package listener

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// listenTCP binds addr with SO_REUSEADDR and calls listen(2) with the
// literal backlog given, then hands the bound socket to net.FileListener.
// net.ListenConfig has no knob for the listen(2) backlog (it always
// lets the standard library pick the OS's SOMAXCONN), so a raw socket is
// built by hand here instead.
func listenTCP(addr string, backlog int) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	ip, err := resolveBindIP(host)
	if err != nil {
		return nil, err
	}

	fd, err := bindAndListen(ip, port, backlog)
	if err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("sshlure-listener-%s", addr))
	defer f.Close()
	return net.FileListener(f)
}

func resolveBindIP(host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	resolved, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return nil, err
	}
	return resolved.IP, nil
}

// bindAndListen creates a socket, sets SO_REUSEADDR, binds it to ip:port,
// and calls listen(2) with backlog as the literal queue length. Returns
// the raw file descriptor, still open, on success.
func bindAndListen(ip net.IP, port, backlog int) (int, error) {
	if ip4 := ip.To4(); ip4 != nil {
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return -1, err
		}
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, err
		}
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			return -1, err
		}
		if err := unix.Listen(fd, backlog); err != nil {
			unix.Close(fd)
			return -1, err
		}
		return fd, nil
	}

	ip6 := ip.To16()
	if ip6 == nil {
		return -1, fmt.Errorf("listener: invalid bind address %v", ip)
	}
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip6)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// setCork toggles TCP_CORK around the SSH handshake so the kernel
// batches the handshake's small writes into fewer segments instead of
// dribbling them out one syscall at a time.
func setCork(conn net.Conn, on bool) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return
	}
	val := 0
	if on {
		val = 1
	}
	rc.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_CORK, val)
	})
}
