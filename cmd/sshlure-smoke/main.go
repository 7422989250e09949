// Command sshlure-smoke is an operator tool for checking that a backend
// (heralding or cowrie) is reachable with a given credential before
// trusting the running proxy to use it. It is not on the session hot
// path, just a local diagnostic the operator runs by hand. Password
// input is hidden via golang.org/x/term when stdin is a real terminal,
// read as a plain line otherwise.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lurehive/sshlure/internal/backend"
)

func main() {
	host := flag.String("host", "cowrie", "backend host")
	port := flag.Int("port", 2222, "backend port")
	user := flag.String("user", "", "username to authenticate as")
	pass := flag.String("pass", "", "password (prompted if omitted)")
	cmd := flag.String("cmd", "whoami", "command to run against the backend shell")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "sshlure-smoke: -user is required")
		os.Exit(2)
	}

	password := *pass
	if password == "" {
		password = readPassword()
	}

	client := backend.NewClient(*host, *port)
	result, err := client.ExecuteCommand(*cmd, *user, password, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "sshlure-smoke: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("cwd: %s\n", result.Cwd)
	fmt.Print(result.Output)
}

func readPassword() string {
	fmt.Fprint(os.Stderr, "Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		passBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
