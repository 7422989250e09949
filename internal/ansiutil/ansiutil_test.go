package ansiutil

import "testing"

func TestStripANSI(t *testing.T) {
	got := StripANSI("\x1b[31mRED\x1b[0m")
	if got != "RED" {
		t.Errorf("StripANSI = %q, want %q", got, "RED")
	}
}

func TestStripANSIIdempotent(t *testing.T) {
	cases := []string{
		"\x1b[31mRED\x1b[0m",
		"plain text",
		"\x1b[4?mixed\x1b[Hstuff",
		"",
	}
	for _, c := range cases {
		once := StripANSI(c)
		twice := StripANSI(once)
		if once != twice {
			t.Errorf("StripANSI not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestRemovePrompt(t *testing.T) {
	got := RemovePrompt("foo \x1b[41mbar")
	if got != "foo" {
		t.Errorf("RemovePrompt = %q, want %q", got, "foo")
	}
}

func TestRemovePromptNoMarker(t *testing.T) {
	in := "no markers here"
	if got := RemovePrompt(in); got != in {
		t.Errorf("RemovePrompt should return input unchanged, got %q", got)
	}
}

func TestRemovePromptUsesLastMarker(t *testing.T) {
	in := "a\x1b[41mb\x1b[42mc"
	got := RemovePrompt(in)
	if got != "a\x1b[41mb" {
		t.Errorf("RemovePrompt = %q, want %q", got, "a\x1b[41mb")
	}
}

func TestCompletionDiff(t *testing.T) {
	if got := CompletionDiff("ech", "echo"); got != "o" {
		t.Errorf("CompletionDiff = %q, want %q", got, "o")
	}
	if got := CompletionDiff("abc", "xyz"); got != "" {
		t.Errorf("CompletionDiff = %q, want empty", got)
	}
	if got := CompletionDiff("", "anything"); got != "anything" {
		t.Errorf("CompletionDiff = %q, want %q", got, "anything")
	}
}

func TestCompletionDiffProperty(t *testing.T) {
	pairs := [][2]string{{"ls ", "l"}, {"cd /ho", "me"}, {"", ""}}
	for _, p := range pairs {
		x, y := p[0], p[1]
		if got := CompletionDiff(x, x+y); got != y {
			t.Errorf("CompletionDiff(%q, %q) = %q, want %q", x, x+y, got, y)
		}
	}
}
