package backend

import "testing"

func TestParseCommandOutputDropsEchoAndExtractsCwd(t *testing.T) {
	raw := []byte("ls\r\nfile1.txt\r\nfile2.txt\r\n\x1b[42muser@host:/home/user$ \x1b[0m")
	res := parseCommandOutput(raw, []byte("user@host:/home/user$ "), "ls")

	if got := res.Cwd; got != "/home/user" {
		t.Errorf("Cwd = %q, want /home/user", got)
	}
	for _, want := range []string{"file1.txt", "file2.txt"} {
		if !contains(res.Output, want) {
			t.Errorf("Output %q missing %q", res.Output, want)
		}
	}
	if contains(res.Output, "ls\r") {
		t.Errorf("Output %q should not echo the sent command", res.Output)
	}
}

func TestParseCommandOutputFallsBackToTildeCwd(t *testing.T) {
	res := parseCommandOutput([]byte("no prompt marker here"), []byte("garbage"), "whoami")
	if res.Cwd != "~" {
		t.Errorf("Cwd = %q, want ~", res.Cwd)
	}
}

func TestIsPrompt(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"user@host:~$ ", true},
		{"root@host:/etc# ", true},
		{"no marker", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isPrompt([]byte(c.in)); got != c.want {
			t.Errorf("isPrompt(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
