package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trafegodns/trafegodns/internal/eventbus"
	"github.com/trafegodns/trafegodns/internal/metrics"
)

// Mode is the tunnel_mode setting from spec.md §6.
type Mode string

const (
	// ModeOff disables tunnel ingress reconciliation entirely.
	ModeOff Mode = "off"
	// ModeAll manages ingress for every discovered hostname with a
	// tunnel-capable provider, using the default tunnel/service unless a
	// container overrides them.
	ModeAll Mode = "all"
	// ModeLabeled only manages ingress for containers explicitly opting in
	// via dns.tunnel.
	ModeLabeled Mode = "labeled"
)

// Observation is the same {container_id, hostnames[], labels{}} triple the
// Intent Builder consumes (pkg/intent.Observation), so the two reconcilers
// can share a Source Watcher.
type Observation struct {
	ContainerID string
	Hostnames   []string
	Labels      map[string]string
}

// Config controls ingress derivation and grace-period cleanup.
type Config struct {
	Mode              Mode
	DefaultTunnelID   string
	DefaultServiceURL string
	LabelPrefix       string
	GracePeriod       time.Duration
	DryRun            bool
}

// DefaultConfig returns a Config with tunnels disabled.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeOff,
		LabelPrefix: DefaultLabelPrefix,
	}
}

// Reconciler diffs the desired ingress set (derived from container
// observations) against a Provider's live ingress and applies changes,
// aging out auto-managed rules through the same grace-period shape
// internal/reconciler uses for DNS records.
type Reconciler struct {
	provider Provider
	store    IngressStore
	config   Config
	logger   *slog.Logger
	events   eventbus.Sink
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) { r.config = cfg }
}

// WithEventBus attaches a sink for TunnelCreated/TunnelDeployed/
// TunnelDeleted lifecycle events emitted during reconciliation.
func WithEventBus(sink eventbus.Sink) Option {
	return func(r *Reconciler) { r.events = sink }
}

// publish is a nil-safe wrapper around the configured event sink.
func (r *Reconciler) publish(ctx context.Context, eventType eventbus.Type, payload any) {
	if r.events == nil {
		return
	}
	r.events.Publish(ctx, eventType, payload)
}

// New creates a Reconciler over a tunnel-capable provider and an
// IngressStore for grace-period bookkeeping.
func New(provider Provider, store IngressStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider: provider,
		store:    store,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Action describes one ingress change applied (or that would be applied in
// dry-run) during a reconciliation pass.
type Action struct {
	Type     string // "create", "update", "delete", "skip"
	TunnelID string
	Hostname string
	Error    string
}

// DesiredRules derives the ingress set from observations per the current
// Mode. Containers without a matching tunnel opt-in are skipped.
func (r *Reconciler) DesiredRules(observations []Observation) []IngressRule {
	var rules []IngressRule
	prefix := r.config.LabelPrefix
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}

	for _, obs := range observations {
		tunnelID, explicit := wantsTunnel(obs.Labels, prefix)
		if r.config.Mode == ModeLabeled && !explicit && tunnelID == "" {
			continue
		}
		if tunnelID == "" {
			tunnelID = r.config.DefaultTunnelID
		}
		if tunnelID == "" {
			continue
		}

		service, ok := lookupLabel(obs.Labels, prefix, "service")
		if !ok {
			service = r.config.DefaultServiceURL
		}
		if service == "" {
			continue
		}

		path, _ := lookupLabel(obs.Labels, prefix, "path")
		origin := OriginOptions{
			NoTLSVerify:    lookupBoolLabel(obs.Labels, prefix, "notlsverify"),
			HTTPHostHeader: mustLookup(obs.Labels, prefix, "httphostheader"),
		}

		for _, hostname := range obs.Hostnames {
			rules = append(rules, IngressRule{
				TunnelID: tunnelID,
				Hostname: hostname,
				Service:  service,
				Path:     path,
				Origin:   origin,
				Source:   SourceAuto,
			})
		}
	}

	return rules
}

func mustLookup(labels map[string]string, prefix, attr string) string {
	v, _ := lookupLabel(labels, prefix, attr)
	return v
}

// Reconcile diffs desired against the provider's live ingress for tunnelID,
// applying creates/updates immediately and routing missing auto-managed
// rules through the grace period before deleting them. Manually added
// (source=api) rules are never touched.
func (r *Reconciler) Reconcile(ctx context.Context, tunnelID string, desired []IngressRule) ([]Action, error) {
	var actions []Action

	live, err := r.provider.ListIngress(ctx, tunnelID)
	if err != nil {
		return nil, fmt.Errorf("listing tunnel ingress: %w", err)
	}

	liveByKey := make(map[Key]IngressRule, len(live))
	for _, rule := range live {
		liveByKey[rule.Key()] = rule
	}

	desiredByKey := make(map[Key]IngressRule, len(desired))
	for _, rule := range desired {
		desiredByKey[rule.Key()] = rule
		existing, exists := liveByKey[rule.Key()]
		if exists && existing.Equal(rule) {
			r.clearIngressOrphanMark(ctx, rule.Key())
			continue
		}

		action := Action{Type: "create", TunnelID: rule.TunnelID, Hostname: rule.Hostname}
		if exists {
			action.Type = "update"
		}

		if r.config.DryRun {
			actions = append(actions, action)
			continue
		}

		if err := r.provider.UpsertIngress(ctx, rule); err != nil {
			action.Type = "skip"
			action.Error = err.Error()
			r.logger.Error("failed to upsert tunnel ingress",
				slog.String("tunnel", rule.TunnelID),
				slog.String("hostname", rule.Hostname),
				slog.String("error", err.Error()),
			)
		} else {
			r.clearIngressOrphanMark(ctx, rule.Key())
			metrics.IngressRulesReconciledTotal.WithLabelValues(rule.TunnelID, action.Type).Inc()
			r.publish(ctx, eventbus.TunnelDeployed, eventbus.TunnelPayload{
				TunnelID: rule.TunnelID, Hostname: rule.Hostname, Action: action.Type,
			})
		}
		actions = append(actions, action)
	}

	for key, rule := range liveByKey {
		if rule.Source == SourceAPI {
			continue
		}
		if _, stillWanted := desiredByKey[key]; stillWanted {
			continue
		}

		if !r.ingressGraceDue(ctx, key) {
			continue
		}

		action := Action{Type: "delete", TunnelID: key.TunnelID, Hostname: key.Hostname}
		if r.config.DryRun {
			actions = append(actions, action)
			continue
		}

		if err := r.provider.RemoveIngress(ctx, key.TunnelID, key.Hostname); err != nil {
			action.Type = "skip"
			action.Error = err.Error()
		} else {
			r.forgetIngressRule(ctx, key)
			metrics.IngressRulesReconciledTotal.WithLabelValues(key.TunnelID, "delete").Inc()
			r.publish(ctx, eventbus.TunnelDeleted, eventbus.TunnelPayload{
				TunnelID: key.TunnelID, Hostname: key.Hostname, Action: "delete",
			})
		}
		actions = append(actions, action)
	}

	return actions, nil
}

// ingressGraceDue mirrors internal/reconciler's orphanGraceDue: without a
// store (or grace period) configured, orphans are deleted immediately.
func (r *Reconciler) ingressGraceDue(ctx context.Context, key Key) bool {
	if r.store == nil || r.config.GracePeriod <= 0 || r.config.DryRun {
		return true
	}

	existing, ok, err := r.store.GetByKey(ctx, key)
	if err != nil {
		r.logger.Warn("failed to read tracked ingress rule for orphan grace check",
			slog.String("tunnel", key.TunnelID), slog.String("hostname", key.Hostname), slog.String("error", err.Error()))
		return true
	}

	if ok && existing.OrphanedAt != nil {
		return time.Since(*existing.OrphanedAt) >= r.config.GracePeriod
	}

	now := time.Now()
	if !ok {
		existing = &IngressRule{TunnelID: key.TunnelID, Hostname: key.Hostname, Source: SourceAuto}
	}
	existing.OrphanedAt = &now

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return true
	}
	if err := r.store.Upsert(ctx, tx, existing); err != nil {
		_ = tx.Rollback(ctx)
		return true
	}
	if err := tx.Commit(ctx); err != nil {
		return true
	}

	r.logger.Info("tunnel ingress rule entered orphan grace period",
		slog.String("tunnel", key.TunnelID), slog.String("hostname", key.Hostname))
	return false
}

func (r *Reconciler) clearIngressOrphanMark(ctx context.Context, key Key) {
	if r.store == nil {
		return
	}
	existing, ok, err := r.store.GetByKey(ctx, key)
	if err != nil || !ok || existing.OrphanedAt == nil {
		return
	}
	existing.OrphanedAt = nil
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return
	}
	if err := r.store.Upsert(ctx, tx, existing); err != nil {
		_ = tx.Rollback(ctx)
		return
	}
	_ = tx.Commit(ctx)
}

func (r *Reconciler) forgetIngressRule(ctx context.Context, key Key) {
	if r.store == nil {
		return
	}
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return
	}
	if err := r.store.Delete(ctx, tx, key); err != nil {
		_ = tx.Rollback(ctx)
		return
	}
	_ = tx.Commit(ctx)
}
