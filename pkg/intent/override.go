package intent

import (
	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
)

// Override is a user-authored sparse patch applied to any DesiredRecord
// matching Hostname, per spec.md §3: "All fields other than hostname are
// optional; absence means inherit."
type Override struct {
	Hostname   string
	RecordType *provider.RecordType
	Content    *string
	TTL        *int
	Proxied    *bool
	ProviderID *string
	Enabled    bool
}

// Matches reports whether the override applies to hostname, comparing
// case-insensitively with trailing dots stripped.
func (o Override) Matches(hostname string) bool {
	return source.NormalizeHostname(hostname) == source.NormalizeHostname(o.Hostname)
}

// Apply returns rec patched by the override. A disabled override is a no-op.
func (o Override) Apply(rec DesiredRecord) DesiredRecord {
	if !o.Enabled {
		return rec
	}
	if o.RecordType != nil {
		rec.Type = *o.RecordType
	}
	if o.Content != nil {
		rec.Content = *o.Content
	}
	if o.TTL != nil {
		rec.TTL = *o.TTL
	}
	if o.Proxied != nil {
		rec.Proxied = o.Proxied
	}
	if o.ProviderID != nil {
		rec.ProviderID = *o.ProviderID
	}
	rec.Source = SourceOverride
	return rec
}

// ApplyFirstMatch applies the first enabled override in overrides matching
// rec.Hostname, if any.
func ApplyFirstMatch(overrides []Override, rec DesiredRecord) DesiredRecord {
	for _, o := range overrides {
		if o.Enabled && o.Matches(rec.Hostname) {
			return o.Apply(rec)
		}
	}
	return rec
}
