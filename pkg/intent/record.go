// Package intent implements the Intent Builder: it turns raw hostname
// observations (container labels, Traefik router rules) plus overrides and
// manually managed hostnames into the normalized, deduplicated set of
// DesiredRecords the Reconciler diffs against the provider and tracked-record
// store.
package intent

import (
	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
)

// RecordSource identifies where a DesiredRecord's content originated.
type RecordSource string

const (
	SourceTraefik   RecordSource = "traefik"
	SourceContainer RecordSource = "container-label"
	SourceManual    RecordSource = "manual"
	SourceOverride  RecordSource = "override"
)

// Key identifies a DesiredRecord within one Intent Set.
type Key struct {
	ProviderID string
	Hostname   string
	Type       provider.RecordType
}

// DesiredRecord is the Intent Builder's output shape: the record the
// Reconciler wants to exist at a provider.
type DesiredRecord struct {
	ProviderID string
	Hostname   string
	Type       provider.RecordType
	Content    string
	TTL        int

	Priority *uint16
	Weight   *uint16
	Port     *uint16
	Flags    string
	Tag      string
	Proxied  *bool

	Source RecordSource
}

// Key returns the DesiredRecord's identity within the Intent Set.
func (r DesiredRecord) Key() Key {
	return Key{ProviderID: r.ProviderID, Hostname: r.Hostname, Type: r.Type}
}

// Normalize lowercases the hostname and strips a trailing dot, matching
// spec.md §3's "hostnames are lowercased, trailing dot stripped."
func (r DesiredRecord) Normalize() DesiredRecord {
	r.Hostname = source.NormalizeHostname(r.Hostname)
	return r
}

// ToProviderRecord projects a DesiredRecord into the shape provider adapters
// consume, carrying no ExternalID (the record does not exist yet, or its
// identity is tracked separately).
func (r DesiredRecord) ToProviderRecord() provider.Record {
	rec := provider.Record{
		Hostname: r.Hostname,
		Type:     r.Type,
		Target:   r.Content,
		TTL:      r.TTL,
		Priority: r.Priority,
		Flags:    r.Flags,
		Tag:      r.Tag,
		Proxied:  r.Proxied,
		Managed:  true,
	}
	if r.Type == provider.RecordTypeSRV && r.Priority != nil && r.Weight != nil && r.Port != nil {
		rec.SRV = &provider.SRVData{Priority: *r.Priority, Weight: *r.Weight, Port: *r.Port}
	}
	return rec
}
