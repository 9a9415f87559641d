package intent

import (
	"net"
	"strings"

	"github.com/trafegodns/trafegodns/pkg/provider"
)

// IsIPv4Literal reports whether content parses as a dotted-quad IPv4 address.
func IsIPv4Literal(content string) bool {
	ip := net.ParseIP(content)
	return ip != nil && ip.To4() != nil
}

// IsIPv6Literal reports whether content parses as an IPv6 address. Per
// spec.md §9 Open Question (b), any value without a colon is never treated
// as an IPv6 literal, even if net.ParseIP would otherwise accept a
// dotted-quad as an IPv4-mapped address — this rejects the source's
// inconsistent handling of values that parse as the literal string "true"
// from ever being coerced into AAAA content.
func IsIPv6Literal(content string) bool {
	if !strings.Contains(content, ":") {
		return false
	}
	ip := net.ParseIP(content)
	return ip != nil && ip.To4() == nil
}

// CanonicalizeContent canonicalizes a DesiredRecord's content per its type,
// matching spec.md §3: "IPv4 dotted-quad, IPv6 lowercased compressed form,
// hostnames lowercased."
func CanonicalizeContent(recordType provider.RecordType, content string) string {
	switch recordType {
	case provider.RecordTypeA:
		if ip := net.ParseIP(content); ip != nil && ip.To4() != nil {
			return ip.To4().String()
		}
		return content
	case provider.RecordTypeAAAA:
		if ip := net.ParseIP(content); ip != nil && ip.To4() == nil {
			return strings.ToLower(ip.String())
		}
		return content
	case provider.RecordTypeCNAME, provider.RecordTypeMX, provider.RecordTypeNS:
		return strings.ToLower(strings.TrimSuffix(content, "."))
	default:
		return content
	}
}

// CoerceCNAMEType auto-coerces a CNAME record to A or AAAA when its content
// is a literal IPv4/IPv6 address, per spec.md §4.2 step 2: "If content is a
// literal IPv4/IPv6 and type is still CNAME, auto-coerce to A / AAAA."
func CoerceCNAMEType(recordType provider.RecordType, content string) provider.RecordType {
	if recordType != provider.RecordTypeCNAME {
		return recordType
	}
	if IsIPv4Literal(content) {
		return provider.RecordTypeA
	}
	if IsIPv6Literal(content) {
		return provider.RecordTypeAAAA
	}
	return recordType
}

// IsApex reports whether hostname is the provider's zone apex (no left-hand
// label), per the GLOSSARY: "a hostname equal to the provider zone."
func IsApex(hostname, zone string) bool {
	return strings.EqualFold(strings.TrimSuffix(hostname, "."), strings.TrimSuffix(zone, "."))
}
