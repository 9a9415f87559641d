// Package tunnel reconciles Cloudflare Zero Trust Tunnel ingress rules
// against the same intent/observation machinery used for DNS records.
//
// A Tunnel fronts one or more HTTP services behind a single outbound
// connection; instead of a DNS record pointing at an origin IP, traffic is
// routed by an IngressRule keyed on hostname to a local service URL. This
// package owns deriving the desired ingress set from container labels,
// diffing it against what the tunnel provider reports, and applying
// create/update/delete actions — reusing the orphan grace-period state
// machine from the DNS reconciler so auto-managed rules age out the same
// way auto-managed DNS records do.
package tunnel

import (
	"context"
	"time"
)

// Source identifies how an IngressRule entered the desired set.
type Source string

const (
	// SourceAPI marks a rule added directly through the provider's API or
	// console, outside this codebase's control. Never auto-deleted.
	SourceAPI Source = "api"

	// SourceAuto marks a rule derived from container labels. Subject to
	// the same orphan grace-period cleanup as auto-managed DNS records.
	SourceAuto Source = "auto"
)

// Tunnel identifies one Cloudflare Zero Trust Tunnel managed by a provider
// instance, per spec.md §3.
type Tunnel struct {
	ID               string
	ProviderID       string
	ExternalTunnelID string
	Name             string
}

// OriginOptions carries per-rule origin behavior overrides.
type OriginOptions struct {
	NoTLSVerify    bool
	HTTPHostHeader string
}

// IngressRule is one hostname -> service mapping within a Tunnel's ingress
// configuration, per spec.md §3.
type IngressRule struct {
	TunnelID string
	Hostname string
	Service  string
	Path     string

	Origin OriginOptions

	Source Source

	// OrphanedAt is set the first reconciliation cycle an auto-managed rule
	// is no longer derived from any container, and cleared by DeleteRule
	// once the rule has actually been removed upstream. Mirrors
	// TrackedRecord.OrphanedAt's Active -> Orphaned -> Deleted semantics.
	OrphanedAt *time.Time
}

// Key identifies an IngressRule within one Tunnel's ingress set.
type Key struct {
	TunnelID string
	Hostname string
}

// Key returns the rule's identity.
func (r IngressRule) Key() Key {
	return Key{TunnelID: r.TunnelID, Hostname: r.Hostname}
}

// IsOrphaned reports whether the rule has entered the orphan grace period.
func (r IngressRule) IsOrphaned() bool {
	return r.OrphanedAt != nil
}

// Equal reports whether two rules describe the same upstream ingress
// configuration, ignoring Source and OrphanedAt bookkeeping.
func (r IngressRule) Equal(other IngressRule) bool {
	return r.TunnelID == other.TunnelID &&
		r.Hostname == other.Hostname &&
		r.Service == other.Service &&
		r.Path == other.Path &&
		r.Origin == other.Origin
}

// Provider is the capability surface a DNS provider instance exposes for
// tunnel ingress management, per spec.md §5 ("Optionally, providers
// supporting tunnel ingress expose..."). Providers that don't support
// tunnels simply don't implement this interface; callers type-assert.
type Provider interface {
	ListTunnels(ctx context.Context) ([]Tunnel, error)
	CreateTunnel(ctx context.Context, name string) (Tunnel, error)
	DeleteTunnel(ctx context.Context, tunnelID string) error
	GetTunnelToken(ctx context.Context, tunnelID string) (string, error)

	ListIngress(ctx context.Context, tunnelID string) ([]IngressRule, error)
	UpsertIngress(ctx context.Context, rule IngressRule) error
	RemoveIngress(ctx context.Context, tunnelID, hostname string) error

	// DeployTunnelConfig pushes the full ingress set to wherever the
	// running cloudflared process reads its config from (API-managed
	// tunnels no-op here; file-based deployments use pkg/sshutil).
	DeployTunnelConfig(ctx context.Context, tunnelID string, rules []IngressRule) error
}
