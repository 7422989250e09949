// Package authpolicy evaluates (user, password) pairs against an
// immutable, ordered rule list loaded once from a credential file.
package authpolicy

import (
	"bufio"
	"os"
	"strings"

	"github.com/lurehive/sshlure/internal/applog"
	"github.com/lurehive/sshlure/internal/proxyerr"
)

// Rule is one (user_pattern, pass_pattern) entry, in load order.
type Rule struct {
	User string
	Pass string
}

// Policy is the process-wide, read-only-after-load credential rule list.
type Policy struct {
	rules []Rule
}

// Load reads one rule per line from path: "user:pass", first ':' only.
// Blank lines and lines starting with '#' are ignored. A missing file
// yields an empty policy (all auth denied) and is logged as a warning,
// not a fatal error.
func Load(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			applog.L().Warnw("credential file not found, denying all auth",
				"path", path)
			return &Policy{}, nil
		}
		return nil, proxyerr.New(proxyerr.ConfigMissing, "authpolicy.Load", err)
	}
	defer f.Close()

	var rules []Rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		rules = append(rules, Rule{User: line[:idx], Pass: line[idx+1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, proxyerr.New(proxyerr.ConfigMissing, "authpolicy.Load", err)
	}

	return &Policy{rules: rules}, nil
}

// Authenticate scans rules top-to-bottom; the first matching rule (literal
// user match or a "*" wildcard) decides the outcome, no further rules are
// consulted. Returns the decision and the matched rule index, or (false,
// -1) when no rule matches.
func (p *Policy) Authenticate(user, pass string) (bool, int) {
	for i, rule := range p.rules {
		if rule.User != user && rule.User != "*" {
			continue
		}
		switch {
		case rule.Pass == "*":
			return true, i
		case strings.HasPrefix(rule.Pass, "!"):
			return pass != rule.Pass[1:], i
		default:
			return pass == rule.Pass, i
		}
	}
	return false, -1
}

// Len returns the number of loaded rules.
func (p *Policy) Len() int {
	return len(p.rules)
}
