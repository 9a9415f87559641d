package intent

import (
	"strconv"
	"strings"
)

// DefaultLabelPrefix is the container-label namespace recognized by the
// Intent Builder, per spec.md §6: "the `dns.` namespace, with provider-scoped
// sub-namespace `dns.<providerType>.`." It is configurable per Builder.
const DefaultLabelPrefix = "dns"

// lookup resolves one attribute by the precedence chain spec.md §4.2
// mandates: `dns.<provider>.<attr>` then `dns.<attr>`. providerTokens may
// list more than one candidate (provider id and provider type) to check,
// tried in order before falling back to the generic key.
func lookup(labels map[string]string, prefix string, providerTokens []string, attr string) (string, bool) {
	for _, token := range providerTokens {
		if token == "" {
			continue
		}
		if v, ok := labels[prefix+"."+token+"."+attr]; ok && v != "" {
			return strings.TrimSpace(v), true
		}
	}
	if v, ok := labels[prefix+"."+attr]; ok && v != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func lookupBool(labels map[string]string, prefix string, providerTokens []string, attr string) (bool, bool) {
	v, ok := lookup(labels, prefix, providerTokens, attr)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupInt(labels map[string]string, prefix string, providerTokens []string, attr string) (int, bool) {
	v, ok := lookup(labels, prefix, providerTokens, attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupUint16(labels map[string]string, prefix string, providerTokens []string, attr string) (uint16, bool) {
	v, ok := lookup(labels, prefix, providerTokens, attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// expandHostnames interprets the Direct-mode hostname label forms
// documented in spec.md §4.1:
//
//	dns.hostname=h1,h2,h3
//	dns.domain=d + dns.subdomain=s1,s2
//	dns.domain=d + dns.use_apex=true
//	dns.host.N=h for N=1,2,...
func expandHostnames(labels map[string]string, prefix string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(h string) {
		h = strings.TrimSpace(h)
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	if v, ok := labels[prefix+".hostname"]; ok {
		for _, h := range strings.Split(v, ",") {
			add(h)
		}
	}

	domain, hasDomain := labels[prefix+".domain"]
	domain = strings.TrimSpace(domain)
	if hasDomain && domain != "" {
		if sub, ok := labels[prefix+".subdomain"]; ok {
			for _, s := range strings.Split(sub, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				add(s + "." + domain)
			}
		}
		if useApex, ok := lookupBool(labels, prefix, nil, "use_apex"); ok && useApex {
			add(domain)
		}
	}

	for key, v := range labels {
		rest, ok := strings.CutPrefix(key, prefix+".host.")
		if !ok || rest == "" {
			continue
		}
		if _, err := strconv.Atoi(rest); err != nil {
			continue
		}
		add(v)
	}

	return out
}
