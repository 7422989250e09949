// Package promptfmt renders the synthesized shell prompt shown to the
// client and truncates the hostname used in it.
package promptfmt

import "fmt"

// hostTruncateLen is the maximum number of bytes kept from the hostname
// before it is embedded in a prompt.
const hostTruncateLen = 9

// TruncateHost truncates host to hostTruncateLen bytes.
func TruncateHost(host string) string {
	if len(host) <= hostTruncateLen {
		return host
	}
	return host[:hostTruncateLen]
}

// Render formats "user@host:cwd$ ". host is expected to already be
// truncated by the caller (see TruncateHost); Render does not re-truncate
// so that callers choosing not to truncate (e.g. tests) get a literal
// rendering.
func Render(user, host, cwd string) string {
	return fmt.Sprintf("%s@%s:%s$ ", user, host, cwd)
}
