// Package ansiutil strips ECMA-48 control sequences and isolates the
// prompt boundary from a backend's PTY transcript.
package ansiutil

import "regexp"

// csiRE matches ESC followed by either a single byte in @-Z / \-_, or
// '[' then a run of parameter bytes 0-?, a run of intermediates ' '-/,
// then a final byte in @-~. This is the ECMA-48 CSI grammar.
var csiRE = regexp.MustCompile("\x1b(?:[@-Z\\\\-_]|\\[[0-?]*[ -/]*[@-~])")

// promptColorRE finds the backend's prompt-color marker family (ESC[4?).
var promptColorRE = regexp.MustCompile("\x1b\\[4.")

// StripANSI removes every CSI/escape sequence from s. Idempotent:
// StripANSI(StripANSI(s)) == StripANSI(s).
func StripANSI(s string) string {
	return csiRE.ReplaceAllString(s, "")
}

// RemovePrompt finds the last occurrence of the ESC[4? prompt-color
// marker and truncates the string there, right-trimming whitespace. If no
// marker exists, the input is returned unchanged.
func RemovePrompt(line string) string {
	matches := promptColorRE.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return line
	}
	last := matches[len(matches)-1]
	return rtrim(line[:last[0]])
}

func rtrim(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i--
			continue
		}
		break
	}
	return s[:i]
}

// CompletionDiff returns completed[len(original):] when completed starts
// with original, else the empty string.
func CompletionDiff(original, completed string) string {
	if len(completed) < len(original) || completed[:len(original)] != original {
		return ""
	}
	return completed[len(original):]
}
