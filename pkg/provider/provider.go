// Package provider defines the interface that all DNS providers must implement.
package provider

import "context"

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeMX    RecordType = "MX"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeSRV   RecordType = "SRV"
	RecordTypeCAA   RecordType = "CAA"
	RecordTypeNS    RecordType = "NS"
)

// AllRecordTypes lists every record type the engine understands.
var AllRecordTypes = []RecordType{
	RecordTypeA, RecordTypeAAAA, RecordTypeCNAME, RecordTypeMX,
	RecordTypeTXT, RecordTypeSRV, RecordTypeCAA, RecordTypeNS,
}

// OwnershipPrefix is the default prefix for ownership TXT records.
const OwnershipPrefix = "_trafegodns"

// OwnershipValue is the content of ownership TXT records.
const OwnershipValue = "heritage=trafegodns"

// SRVData contains SRV record-specific fields.
// Used when Type is RecordTypeSRV.
type SRVData struct {
	Priority uint16 // Lower values = higher priority (0-65535)
	Weight   uint16 // Load balancing among same-priority servers (0-65535)
	Port     uint16 // TCP/UDP port number (1-65535)
}

// Record represents a DNS record, either desired (intent) or observed (provider-side).
//
// Field names follow the teacher's original vocabulary (Target, ProviderID)
// rather than the spec's (content, externalId) — they carry the same
// meaning: Target is the record's content, ProviderID is the provider's own
// identifier for the record (populated on records returned from List, and
// set by adapters after Create).
type Record struct {
	Hostname   string
	Type       RecordType
	Target     string // IP for A/AAAA, hostname for CNAME/MX/NS, text for TXT
	TTL        int
	ProviderID string   // Provider-specific record identifier ("externalId")
	SRV        *SRVData // SRV-specific data (only set when Type is SRV)

	// Priority is used by MX records (lower = more preferred). Nil means unset.
	Priority *uint16

	// Flags and Tag carry CAA record fields ("flags tag value", value is Target).
	Flags string
	Tag   string

	// Proxied indicates Cloudflare-style proxy status. Only meaningful for
	// A/AAAA/CNAME records at providers whose Features().Proxied is true.
	Proxied *bool

	// Managed reflects whether the engine created/owns this record, as
	// opposed to a record discovered at the provider that predates it.
	// Populated by the reconciler from the TrackedRecordStore; adapters
	// leave it unset.
	Managed bool
}

// Features describes a provider's feature support and limits.
// Used by the Reconciler and Intent Builder to validate and clamp intent,
// matching the spec's `features()` adapter contract.
type Features struct {
	// Proxied indicates the provider supports a proxy/CDN toggle on records
	// (Cloudflare orange-cloud). Only A/AAAA/CNAME may set Proxied.
	Proxied bool

	// TTLMin and TTLMax bound the TTL values this provider accepts. A TTL
	// of 1 conventionally means "automatic"/"use provider default" and is
	// exempt from clamping.
	TTLMin int
	TTLMax int

	// SupportedRecordTypes lists the DNS record types this provider can manage.
	SupportedRecordTypes []RecordType

	// Batch indicates the provider accepts batched writes (used by the
	// Reconciler's Execute step to coalesce same-cycle actions).
	Batch bool

	// SupportsOwnershipTXT indicates if the provider can create TXT records
	// for ownership tracking. File-based providers (dnsmasq) typically cannot.
	SupportsOwnershipTXT bool

	// SupportsNativeUpdate indicates if the provider has a native update
	// operation. If false, updates require delete+create. Providers with
	// native update should also implement the Updater interface.
	SupportsNativeUpdate bool
}

// SupportsRecordType returns true if the provider supports the given record type.
func (f Features) SupportsRecordType(rt RecordType) bool {
	for _, t := range f.SupportedRecordTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// ClampTTL returns ttl clamped to [TTLMin, TTLMax]. A ttl of 1 ("automatic")
// passes through unclamped.
func (f Features) ClampTTL(ttl int) int {
	if ttl == 1 {
		return ttl
	}
	if f.TTLMin > 0 && ttl < f.TTLMin {
		return f.TTLMin
	}
	if f.TTLMax > 0 && ttl > f.TTLMax {
		return f.TTLMax
	}
	return ttl
}

// Provider defines the interface for DNS providers.
// Each provider implementation (Technitium, Cloudflare, etc.) must satisfy this interface.
type Provider interface {
	// Name returns the provider instance name (e.g., "internal-dns").
	Name() string

	// Type returns the provider type (e.g., "technitium", "cloudflare").
	Type() string

	// Ping checks connectivity to the provider ("testConnection").
	Ping(ctx context.Context) error

	// Features returns the provider's declared feature support.
	Features() Features

	// List returns all records in the configured zone.
	List(ctx context.Context) ([]Record, error)

	// Create adds a new DNS record. Must be idempotent on a (name, type)
	// collision per the reconciler's upsert contract: adapters may return
	// ErrConflict and let the caller fall back to Update, or silently adopt
	// the existing record's ProviderID.
	Create(ctx context.Context, record Record) error

	// Delete removes a DNS record. Tolerates "not found" as success.
	Delete(ctx context.Context, record Record) error
}

// Updater is an optional interface that providers can implement to support
// native in-place record updates. This is more efficient than delete+create
// and avoids brief DNS gaps when changing record values.
//
// The reconciler checks if a provider implements Updater and uses it when
// available. If not, the reconciler falls back to delete+create.
//
// Providers that implement Updater should also set Features().SupportsNativeUpdate = true.
type Updater interface {
	// Update modifies an existing DNS record in place.
	// The existing record is identified by its current values (hostname, type, target).
	// The desired record contains the new values to apply.
	//
	// Implementations should:
	// - Only modify fields that differ between existing and desired
	// - Return ErrRecordNotFound if the existing record doesn't exist
	// - Be idempotent (calling with identical records is a no-op)
	Update(ctx context.Context, existing, desired Record) error
}

// BatchProvider is an optional interface for providers that can apply
// several record operations in a single network round trip. The reconciler
// uses this when Features().Batch is true; it always falls back to the
// per-record Provider methods otherwise.
type BatchProvider interface {
	CreateBatch(ctx context.Context, records []Record) error
	UpdateBatch(ctx context.Context, pairs []RecordPair) error
	DeleteBatch(ctx context.Context, records []Record) error
}

// RecordPair couples an existing record with its desired replacement, used
// by BatchProvider.UpdateBatch.
type RecordPair struct {
	Existing Record
	Desired  Record
}

// RecordEquals returns true if two records are logically equal.
// Provider-specific IDs are not compared.
func RecordEquals(a, b Record) bool {
	if a.Hostname != b.Hostname || a.Type != b.Type || a.Target != b.Target || a.TTL != b.TTL {
		return false
	}

	if !proxiedEquals(a.Proxied, b.Proxied) {
		return false
	}
	if !priorityEquals(a.Priority, b.Priority) {
		return false
	}
	if a.Type == RecordTypeCAA && (a.Flags != b.Flags || a.Tag != b.Tag) {
		return false
	}

	if a.Type == RecordTypeSRV {
		if a.SRV == nil && b.SRV == nil {
			return true
		}
		if a.SRV == nil || b.SRV == nil {
			return false
		}
		return a.SRV.Priority == b.SRV.Priority &&
			a.SRV.Weight == b.SRV.Weight &&
			a.SRV.Port == b.SRV.Port
	}

	return true
}

func proxiedEquals(a, b *bool) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func priorityEquals(a, b *uint16) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// OwnershipRecordName returns the TXT record name for ownership tracking.
// Example: "app.example.com" -> "_trafegodns.app.example.com"
func OwnershipRecordName(hostname string) string {
	return OwnershipPrefix + "." + hostname
}

// IsOwnershipRecord returns true if the hostname is an ownership TXT record.
func IsOwnershipRecord(hostname string) bool {
	return len(hostname) > len(OwnershipPrefix)+1 &&
		hostname[:len(OwnershipPrefix)+1] == OwnershipPrefix+"."
}

// ExtractHostnameFromOwnership extracts the original hostname from an ownership record name.
// Example: "_trafegodns.app.example.com" -> "app.example.com"
// Returns empty string if the hostname is not an ownership record.
func ExtractHostnameFromOwnership(ownershipName string) string {
	if !IsOwnershipRecord(ownershipName) {
		return ""
	}
	return ownershipName[len(OwnershipPrefix)+1:]
}

// OwnershipRecord creates a TXT record for ownership tracking.
func OwnershipRecord(hostname string, ttl int) Record {
	return Record{
		Hostname: OwnershipRecordName(hostname),
		Type:     RecordTypeTXT,
		Target:   OwnershipValue,
		TTL:      ttl,
	}
}
