// Package motd loads and formats the message-of-the-day banner shown on
// shell login.
package motd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lurehive/sshlure/internal/applog"
)

const timeLayout = "Mon Jan 02 15:04:05 UTC 2006"

// Load reads path, a UTF-8 text file whose lines may reference the
// template fields {now} and {hostname}, and returns the formatted lines.
// Interior blank lines are kept (they render as blank banner lines);
// hostname is right-padded with spaces to width 10 including a trailing
// colon before substitution. On any failure to read the file, a single
// fallback line is returned.
func Load(path, hostname string) []string {
	now := time.Now().UTC().Format(timeLayout)
	formattedHost := padHostname(hostname)

	data, err := os.ReadFile(path)
	if err != nil {
		applog.L().Warnw("failed to read motd file, using fallback", "path", path, "error", err)
		return []string{fmt.Sprintf("Welcome. (Host: 192.168.100.3 Time: %s)", now)}
	}

	lines := strings.Split(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	replacer := strings.NewReplacer("{now}", now, "{hostname}", formattedHost)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, replacer.Replace(line))
	}
	return out
}

func padHostname(hostname string) string {
	s := hostname + ":"
	for len(s) < 10 {
		s += " "
	}
	return s
}
