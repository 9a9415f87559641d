package intent

import (
	"strings"

	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
)

// Validate checks a DesiredRecord for type-specific syntactic correctness
// per spec.md §4.2 step 7: "A→IPv4, AAAA→IPv6, hostname fields→RFC 1035,
// TXT≤255 bytes per string, SRV "prio weight port target", CAA "flags tag
// value"." It returns a *ValidationError, never a generic error, so callers
// can report it structurally without crashing the reconciliation cycle.
func Validate(rec DesiredRecord) error {
	if rec.Hostname == "" {
		return &ValidationError{Field: "hostname", Reason: "empty"}
	}
	if err := source.ValidateHostname(rec.Hostname); err != nil && rec.Type != provider.RecordTypeSRV {
		return &ValidationError{Hostname: rec.Hostname, Field: "hostname", Value: rec.Hostname, Reason: err.Error()}
	}

	switch rec.Type {
	case provider.RecordTypeA:
		if !IsIPv4Literal(rec.Content) {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "not a valid IPv4 address"}
		}
	case provider.RecordTypeAAAA:
		if !IsIPv6Literal(rec.Content) {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "not a valid IPv6 address"}
		}
	case provider.RecordTypeCNAME, provider.RecordTypeNS:
		if err := source.ValidateHostname(strings.TrimSuffix(rec.Content, ".")); err != nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "not a valid hostname: " + err.Error()}
		}
	case provider.RecordTypeMX:
		if err := source.ValidateHostname(strings.TrimSuffix(rec.Content, ".")); err != nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "not a valid mail exchanger hostname: " + err.Error()}
		}
		if rec.Priority == nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "priority", Reason: "MX records require a priority"}
		}
	case provider.RecordTypeTXT:
		if len(rec.Content) > 255 {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "TXT record strings must be <= 255 bytes"}
		}
	case provider.RecordTypeSRV:
		if err := source.ValidateSRVHostname(rec.Hostname); err != nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "hostname", Value: rec.Hostname, Reason: err.Error()}
		}
		if rec.Priority == nil || rec.Weight == nil || rec.Port == nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "srv", Reason: `SRV requires "prio weight port target" fields`}
		}
		if *rec.Port == 0 {
			return &ValidationError{Hostname: rec.Hostname, Field: "port", Value: "0", Reason: "SRV port must be 1-65535"}
		}
		if err := source.ValidateHostname(strings.TrimSuffix(rec.Content, ".")); err != nil {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Value: rec.Content, Reason: "SRV target is not a valid hostname: " + err.Error()}
		}
	case provider.RecordTypeCAA:
		if rec.Flags == "" {
			rec.Flags = "0"
		}
		if rec.Tag != "issue" && rec.Tag != "issuewild" && rec.Tag != "iodef" {
			return &ValidationError{Hostname: rec.Hostname, Field: "tag", Value: rec.Tag, Reason: `CAA tag must be "issue", "issuewild", or "iodef"`}
		}
		if rec.Content == "" {
			return &ValidationError{Hostname: rec.Hostname, Field: "content", Reason: `CAA requires "flags tag value" content`}
		}
	}

	if rec.Proxied != nil {
		switch rec.Type {
		case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME:
		default:
			return &ValidationError{Hostname: rec.Hostname, Field: "proxied", Reason: "proxied is only valid on A/AAAA/CNAME"}
		}
	}

	return nil
}
