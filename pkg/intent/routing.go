package intent

import (
	"sync"

	"github.com/trafegodns/trafegodns/pkg/provider"
)

// RoutingMode governs which provider claims a hostname when no explicit
// `dns.<provider>.*` or `dns.providerId` label names one, per spec.md §4.3's
// "tie-breaks" rule.
type RoutingMode string

const (
	// RoutingPrimaryOnly routes every unclaimed hostname to the default
	// (primary) provider.
	RoutingPrimaryOnly RoutingMode = "primary-only"

	// RoutingRoundRobin rotates across enabled providers in id order.
	RoutingRoundRobin RoutingMode = "round-robin"

	// RoutingAutoWithFallback tries providers in priority order,
	// advancing to the next on failure. The Intent Builder treats this
	// the same as primary-only (it picks the first priority provider);
	// the Reconciler is responsible for falling back to the next
	// provider on a write failure.
	RoutingAutoWithFallback RoutingMode = "auto-with-fallback"
)

// ProviderInfo is the subset of provider configuration the Intent Builder
// needs to resolve ownership and clamp attributes.
type ProviderInfo struct {
	ID         string
	Type       string
	Zone       string
	DefaultTTL int
	Features   provider.Features
	Priority   int // lower = tried first under auto-with-fallback
}

// Router resolves which provider owns a hostname when no label claims one
// explicitly. It is safe for concurrent use.
type Router struct {
	mu             sync.Mutex
	mode           RoutingMode
	sameZoneOK     bool
	providers      []ProviderInfo
	roundRobinNext int
}

// NewRouter builds a Router over providers (assumed already sorted by id
// for round-robin, and by Priority for auto-with-fallback/primary-only —
// the first entry is the primary/default provider).
func NewRouter(mode RoutingMode, allowMultiProviderSameZone bool, providers []ProviderInfo) *Router {
	return &Router{
		mode:       mode,
		sameZoneOK: allowMultiProviderSameZone,
		providers:  providers,
	}
}

// Resolve picks the provider for hostname when no label specified one
// explicitly. It returns the chosen ProviderInfo, or an error describing
// why none could be chosen.
//
// Open Question (a) resolution: under round-robin with
// dns_multi_provider_same_zone=false, if the provider the rotation lands on
// shares a zone with the previously-chosen provider for a hostname already
// seen this cycle, the Router skips to the next provider in a different zone.
// If every provider shares that zone it returns a RoutingConflictError rather
// than double-writing the hostname.
func (r *Router) Resolve(hostname string, zonesClaimedThisCycle map[string]string) (ProviderInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.providers) == 0 {
		return ProviderInfo{}, &ValidationError{Hostname: hostname, Field: "providerId", Reason: "no providers configured"}
	}

	switch r.mode {
	case RoutingRoundRobin:
		return r.resolveRoundRobin(hostname, zonesClaimedThisCycle)
	default: // primary-only, auto-with-fallback
		return r.providers[0], nil
	}
}

func (r *Router) resolveRoundRobin(hostname string, zonesClaimedThisCycle map[string]string) (ProviderInfo, error) {
	n := len(r.providers)
	start := r.roundRobinNext
	r.roundRobinNext = (r.roundRobinNext + 1) % n

	if r.sameZoneOK {
		return r.providers[start], nil
	}

	for i := 0; i < n; i++ {
		candidate := r.providers[(start+i)%n]
		if existingZone, claimed := zonesClaimedThisCycle[hostname]; claimed && existingZone == candidate.Zone {
			continue
		}
		return candidate, nil
	}

	// Every candidate shares a zone already claimed for this hostname:
	// same_zone=false forbids writing it twice.
	return ProviderInfo{}, &RoutingConflictError{Hostname: hostname, ZoneA: r.providers[start].Zone}
}
