package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
)

// Observation is the raw `{container_id, hostnames[], labels{}}` triple the
// Source Watcher emits, per spec.md §4.1. Hostnames is pre-populated by the
// watcher for Traefik mode (one entry per matched router rule); it is left
// empty for Direct mode, where the Builder derives hostnames itself from
// the `dns.hostname` / `dns.domain`+`dns.subdomain` / `dns.host.N` label
// forms in Labels.
type Observation struct {
	ContainerID string
	Hostnames   []string
	Labels      map[string]string
	RecordSource RecordSource // SourceTraefik or SourceContainer
}

// ManualRecord is a persisted, user-authored DesiredRecord not tied to any
// container, per spec.md §4.2: "manually managed DesiredRecords drawn from
// persistent managed hostnames configuration."
type ManualRecord = DesiredRecord

// IPResolver supplies the discovered public IP used for apex A/AAAA
// records whose content is otherwise unspecified (spec.md §4.2 step 3).
type IPResolver interface {
	PublicIPv4(ctx context.Context) (string, bool)
	PublicIPv6(ctx context.Context) (string, bool)
}

// Result is the outcome of one Build call: the deduplicated Intent Set plus
// any errors encountered along the way. Errors never abort the build; they
// describe hostnames that were skipped.
type Result struct {
	Records []DesiredRecord
	Errors  []error
}

// Builder implements the Intent Builder component (spec.md §4.2).
type Builder struct {
	labelPrefix string
	router      *Router
	providers   map[string]ProviderInfo
	ipResolver  IPResolver
	logger      *slog.Logger

	// DefaultManage is the global opt-in/opt-out policy
	// (dns_default_manage). false means containers are excluded unless
	// they carry dns.manage=true.
	DefaultManage bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLabelPrefix overrides the default "dns" label namespace.
func WithLabelPrefix(prefix string) Option {
	return func(b *Builder) { b.labelPrefix = prefix }
}

// WithIPResolver sets the public-IP resolver used for apex records.
func WithIPResolver(r IPResolver) Option {
	return func(b *Builder) { b.ipResolver = r }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithDefaultManage sets the dns_default_manage policy.
func WithDefaultManage(manage bool) Option {
	return func(b *Builder) { b.DefaultManage = manage }
}

// NewBuilder creates a Builder over router (provider resolution/routing)
// and providers (keyed by provider ID).
func NewBuilder(router *Router, providers []ProviderInfo, opts ...Option) *Builder {
	b := &Builder{
		labelPrefix:   DefaultLabelPrefix,
		router:        router,
		providers:     make(map[string]ProviderInfo, len(providers)),
		logger:        slog.Default(),
		DefaultManage: true,
	}
	for _, p := range providers {
		b.providers[p.ID] = p
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the full algorithm in spec.md §4.2 over observations and
// manual records, applying overrides, and returns the deduplicated Intent
// Set.
func (b *Builder) Build(ctx context.Context, observations []Observation, overrides []Override, manual []ManualRecord) Result {
	var result Result
	seen := make(map[Key]DesiredRecord)
	seenFromContainer := make(map[Key]string)
	zonesClaimed := make(map[string]string)

	for _, obs := range observations {
		if b.skipContainer(obs.Labels) {
			continue
		}

		hostnames := obs.Hostnames
		if len(hostnames) == 0 {
			hostnames = expandHostnames(obs.Labels, b.labelPrefix)
		}

		for _, hostname := range hostnames {
			rec, err := b.buildOne(ctx, hostname, obs, overrides, zonesClaimed)
			if err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}

			key := rec.Key()
			if existing, ok := seen[key]; ok {
				if existing.Content == rec.Content {
					continue // same container-set repeating the same intent; coalesce
				}
				if seenFromContainer[key] != obs.ContainerID {
					result.Errors = append(result.Errors, &ConflictError{
						Hostname:    rec.Hostname,
						Type:        string(rec.Type),
						FirstValue:  existing.Content,
						SecondValue: rec.Content,
					})
					delete(seen, key)
					continue
				}
			}

			seen[key] = rec
			seenFromContainer[key] = obs.ContainerID
			zonesClaimed[rec.Hostname] = b.providers[rec.ProviderID].Zone
		}
	}

	for _, rec := range manual {
		rec.Source = SourceManual
		rec = ApplyFirstMatch(overrides, rec).Normalize()
		if err := Validate(rec); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		seen[rec.Key()] = rec
	}

	result.Records = make([]DesiredRecord, 0, len(seen))
	for _, rec := range seen {
		result.Records = append(result.Records, rec)
	}
	return result
}

func (b *Builder) skipContainer(labels map[string]string) bool {
	if skip, ok := lookupBool(labels, b.labelPrefix, nil, "skip"); ok && skip {
		return true
	}
	if !b.DefaultManage {
		manage, ok := lookupBool(labels, b.labelPrefix, nil, "manage")
		if !ok || !manage {
			return true
		}
	}
	return false
}

// providerTokens returns the candidate namespace tokens (id, then type) to
// check under `dns.<token>.<attr>` for a resolved provider.
func providerTokens(p ProviderInfo) []string {
	return []string{p.ID, p.Type}
}

func (b *Builder) resolveProvider(hostname string, labels map[string]string, zonesClaimed map[string]string) (ProviderInfo, error) {
	if explicitID, ok := lookup(labels, b.labelPrefix, nil, "providerId"); ok {
		if p, ok := b.providers[explicitID]; ok {
			return p, nil
		}
		return ProviderInfo{}, &ValidationError{Hostname: hostname, Field: "providerId", Value: explicitID, Reason: "no such provider"}
	}

	for _, p := range b.providers {
		if hasNamespace(labels, b.labelPrefix, p.ID) || hasNamespace(labels, b.labelPrefix, p.Type) {
			return p, nil
		}
	}

	return b.router.Resolve(hostname, zonesClaimed)
}

func hasNamespace(labels map[string]string, prefix, token string) bool {
	if token == "" {
		return false
	}
	want := prefix + "." + token + "."
	for key := range labels {
		if strings.HasPrefix(key, want) {
			return true
		}
	}
	return false
}

func (b *Builder) buildOne(ctx context.Context, hostname string, obs Observation, overrides []Override, zonesClaimed map[string]string) (DesiredRecord, error) {
	hostname = source.NormalizeHostname(hostname)
	labels := obs.Labels

	p, err := b.resolveProvider(hostname, labels, zonesClaimed)
	if err != nil {
		return DesiredRecord{}, err
	}
	tokens := providerTokens(p)
	apex := IsApex(hostname, p.Zone)

	recordType := provider.RecordTypeCNAME
	if typeStr, ok := lookup(labels, b.labelPrefix, tokens, "type"); ok {
		recordType = provider.RecordType(strings.ToUpper(typeStr))
	} else if apex {
		recordType = provider.RecordTypeA
	}

	content, hasContent := lookup(labels, b.labelPrefix, tokens, "content")
	if !hasContent {
		switch {
		case apex && recordType == provider.RecordTypeA && b.ipResolver != nil:
			if ip, ok := b.ipResolver.PublicIPv4(ctx); ok {
				content = ip
			}
		case apex && recordType == provider.RecordTypeAAAA && b.ipResolver != nil:
			if ip, ok := b.ipResolver.PublicIPv6(ctx); ok {
				content = ip
			}
		case recordType == provider.RecordTypeCNAME:
			content = p.Zone
		}
	}

	recordType = CoerceCNAMEType(recordType, content)
	content = CanonicalizeContent(recordType, content)

	rec := DesiredRecord{
		ProviderID: p.ID,
		Hostname:   hostname,
		Type:       recordType,
		Content:    content,
		Source:     obs.RecordSource,
	}

	if ttl, ok := lookupInt(labels, b.labelPrefix, tokens, "ttl"); ok {
		rec.TTL = ttl
	} else {
		rec.TTL = p.DefaultTTL
	}
	rec.TTL = p.Features.ClampTTL(rec.TTL)

	if priority, ok := lookupUint16(labels, b.labelPrefix, tokens, "priority"); ok {
		rec.Priority = &priority
	}
	if weight, ok := lookupUint16(labels, b.labelPrefix, tokens, "weight"); ok {
		rec.Weight = &weight
	}
	if port, ok := lookupUint16(labels, b.labelPrefix, tokens, "port"); ok {
		rec.Port = &port
	}
	if flags, ok := lookup(labels, b.labelPrefix, tokens, "flags"); ok {
		rec.Flags = flags
	}
	if tag, ok := lookup(labels, b.labelPrefix, tokens, "tag"); ok {
		rec.Tag = tag
	}
	if proxied, ok := lookupBool(labels, b.labelPrefix, tokens, "proxied"); ok {
		rec.Proxied = &proxied
	}

	rec = ApplyFirstMatch(overrides, rec)

	if err := Validate(rec); err != nil {
		return DesiredRecord{}, err
	}
	return rec, nil
}
