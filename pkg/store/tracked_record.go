// Package store defines the TrackedRecordStore — the single mutable shared
// state the Reconciler and Orphan Manager operate on (spec.md §3, §5).
package store

import (
	"time"

	"github.com/trafegodns/trafegodns/pkg/provider"
)

// Source identifies where a tracked record's intent originated.
type Source string

const (
	SourceTraefik      Source = "traefik"
	SourceContainer    Source = "container-label"
	SourceManual       Source = "manual"
	SourceOverride     Source = "override"
	SourceUnmanaged    Source = "" // discovered at the provider, never engine-written
)

// RecordKey is the unique identity of a TrackedRecord in its active state:
// "(providerId, hostname, type) identifies at most one TrackedRecord in the
// active (non-orphaned) state" (spec.md §3 Invariants).
type RecordKey struct {
	ProviderID string
	Hostname   string
	Type       provider.RecordType
}

// TrackedRecord is the persisted lifecycle state for one managed (or
// discovered-unmanaged) DNS record.
type TrackedRecord struct {
	ID         string
	ProviderID string
	ExternalID string // the provider's own record identifier
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

	// Managed is true if the engine may mutate or delete this record;
	// false means it was discovered at the provider and is read-only.
	Managed bool

	// Source records where the intent for this record came from.
	Source Source

	// OrphanedAt, if non-nil, places the record in the Orphaned state.
	OrphanedAt *time.Time

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSyncedAt time.Time
}

// Key returns this record's RecordKey.
func (r *TrackedRecord) Key() RecordKey {
	return RecordKey{ProviderID: r.ProviderID, Hostname: r.Hostname, Type: r.Type}
}

// IsOrphaned returns true if the record currently has a pending orphan timestamp.
func (r *TrackedRecord) IsOrphaned() bool {
	return r.OrphanedAt != nil
}

// ToProviderRecord projects a TrackedRecord back into a provider.Record for
// adapter calls.
func (r *TrackedRecord) ToProviderRecord() provider.Record {
	rec := provider.Record{
		Hostname:   r.Hostname,
		Type:       r.Type,
		Target:     r.Content,
		TTL:        r.TTL,
		ProviderID: r.ExternalID,
		Priority:   r.Priority,
		Flags:      r.Flags,
		Tag:        r.Tag,
		Proxied:    r.Proxied,
		Managed:    r.Managed,
	}
	if r.Type == provider.RecordTypeSRV && r.Priority != nil && r.Weight != nil && r.Port != nil {
		rec.SRV = &provider.SRVData{Priority: *r.Priority, Weight: *r.Weight, Port: *r.Port}
	}
	return rec
}

// FromProviderRecord builds a fresh TrackedRecord from a provider.Record
// observation (used for Unmanaged-record bookkeeping and recovery).
func FromProviderRecord(providerID string, rec provider.Record, managed bool, source Source) *TrackedRecord {
	now := time.Now()
	tr := &TrackedRecord{
		ProviderID: providerID,
		ExternalID: rec.ProviderID,
		Hostname:   rec.Hostname,
		Type:       rec.Type,
		Content:    rec.Target,
		TTL:        rec.TTL,
		Priority:   rec.Priority,
		Flags:      rec.Flags,
		Tag:        rec.Tag,
		Proxied:    rec.Proxied,
		Managed:    managed,
		Source:     source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.SRV != nil {
		p, w, port := rec.SRV.Priority, rec.SRV.Weight, rec.SRV.Port
		tr.Priority, tr.Weight, tr.Port = &p, &w, &port
	}
	return tr
}

// Filter narrows a List call. Zero-value fields are unconstrained.
type Filter struct {
	ProviderID string
	Hostname   string
	Managed    *bool
	Orphaned   *bool // true = only orphaned, false = only active, nil = both
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r *TrackedRecord) bool {
	if f.ProviderID != "" && r.ProviderID != f.ProviderID {
		return false
	}
	if f.Hostname != "" && r.Hostname != f.Hostname {
		return false
	}
	if f.Managed != nil && r.Managed != *f.Managed {
		return false
	}
	if f.Orphaned != nil && r.IsOrphaned() != *f.Orphaned {
		return false
	}
	return true
}
