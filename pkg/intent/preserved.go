package intent

import (
	"strings"

	"github.com/trafegodns/trafegodns/pkg/source"
)

// PreservedHostname exempts a hostname (or left wildcard suffix pattern,
// e.g. "*.foo.example.com") from orphan cleanup, per spec.md §3/§4.4.
type PreservedHostname struct {
	Pattern string
	Reason  string
}

// Matches reports whether hostname is covered by this pattern.
func (p PreservedHostname) Matches(hostname string) bool {
	hostname = source.NormalizeHostname(hostname)
	pattern := source.NormalizeHostname(p.Pattern)

	if rest, ok := strings.CutPrefix(pattern, "*."); ok {
		return hostname == rest || strings.HasSuffix(hostname, "."+rest)
	}
	return hostname == pattern
}

// MatchAny reports whether hostname is preserved by any entry in list, and
// if so, the reason given for the first matching entry.
func MatchAny(list []PreservedHostname, hostname string) (preserved bool, reason string) {
	for _, p := range list {
		if p.Matches(hostname) {
			return true, p.Reason
		}
	}
	return false, ""
}
