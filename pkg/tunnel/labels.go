package tunnel

import (
	"strconv"
	"strings"
)

// DefaultLabelPrefix matches the Intent Builder's "dns" namespace; tunnel
// attributes live under dns.tunnel[.attr], per spec.md §6.
const DefaultLabelPrefix = "dns"

func tunnelLabel(prefix, attr string) string {
	if attr == "" {
		return prefix + ".tunnel"
	}
	return prefix + ".tunnel." + attr
}

// wantsTunnel reports whether labels opt this container into tunnel
// ingress at all: presence of a non-empty dns.tunnel value.
func wantsTunnel(labels map[string]string, prefix string) (tunnelID string, explicit bool) {
	v, ok := labels[tunnelLabel(prefix, "")]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		// dns.tunnel=true just opts in; the default tunnel ID is used.
		return "", b
	}
	return v, true
}

func lookupLabel(labels map[string]string, prefix, attr string) (string, bool) {
	v, ok := labels[tunnelLabel(prefix, attr)]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func lookupBoolLabel(labels map[string]string, prefix, attr string) bool {
	v, ok := lookupLabel(labels, prefix, attr)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
