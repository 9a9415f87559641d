// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trafegodns/trafegodns/internal/docker"
	"github.com/trafegodns/trafegodns/internal/eventbus"
	"github.com/trafegodns/trafegodns/internal/metrics"
	"github.com/trafegodns/trafegodns/pkg/intent"
	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
	"github.com/trafegodns/trafegodns/pkg/store"
)

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool

	// CleanupOrphans if true, removes DNS records for missing workloads.
	CleanupOrphans bool

	// OwnershipTracking if true, creates TXT records to mark ownership of DNS records.
	// When orphan cleanup runs, only records with ownership markers will be deleted.
	// This prevents deletion of manually-created DNS records.
	OwnershipTracking bool

	// AdoptExisting if true, creates ownership TXT records for existing DNS records
	// that have matching targets. If false, existing records are left unmanaged.
	AdoptExisting bool

	// ReconcileInterval is the interval between full reconciliation runs.
	// Zero means no automatic reconciliation (only on-demand).
	ReconcileInterval time.Duration

	// Enabled controls whether reconciliation is active.
	// When false, Reconcile() returns immediately without doing anything.
	Enabled bool

	// OperationMode is "traefik" (hostnames come from the registered Source
	// Watcher's router-rule extraction) or "direct" (the Intent Builder
	// derives hostnames itself from dns.hostname / dns.domain+dns.subdomain
	// / dns.host.N container labels).
	OperationMode string

	// RoutingMode governs which provider claims a hostname when no label
	// names one explicitly (pkg/intent.Router).
	RoutingMode intent.RoutingMode

	// MultiProviderSameZone allows more than one provider to claim the same
	// zone under round-robin routing.
	MultiProviderSameZone bool

	// DefaultManage is the Intent Builder's dns_default_manage policy: if
	// false, a container is skipped unless it carries dns.manage=true.
	DefaultManage bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DryRun:            false,
		CleanupOrphans:    true,
		OwnershipTracking: true,
		AdoptExisting:     false,
		ReconcileInterval: 60 * time.Second,
		Enabled:           true,
		OperationMode:     "traefik",
		RoutingMode:       intent.RoutingPrimaryOnly,
		DefaultManage:     true,
	}
}

// Reconciler coordinates DNS record synchronization between sources and providers.
//
// The reconciler:
//  1. Scans Docker workloads (services in Swarm, containers in standalone)
//  2. Extracts hostnames from workload labels using registered sources
//  3. For each hostname, finds matching provider(s) based on domain patterns
//  4. Ensures DNS records exist for discovered hostnames
//  5. Optionally removes orphan records (hostnames no longer in workloads)
type Reconciler struct {
	docker    *docker.Client
	sources   *source.Registry
	providers *provider.Registry
	config    Config
	logger    *slog.Logger

	// mu protects knownHostnames during concurrent access
	mu sync.RWMutex
	// knownHostnames tracks hostnames discovered in the last reconciliation.
	// Used for orphan detection.
	knownHostnames map[string]struct{}

	// store, when set, backs the Active -> Orphaned -> Deleted grace-period
	// state machine for orphan cleanup. Nil means every orphan is deleted
	// the first cycle it's detected, matching the reconciler's original
	// behavior before grace periods existed.
	store store.Store

	// gracePeriod is how long a record stays in the Orphaned state before
	// cleanupOrphans will actually delete it. Ignored when store is nil.
	gracePeriod time.Duration

	// preserved lists hostnames exempt from orphan cleanup regardless of
	// grace period (decommission holds, manual overrides, etc).
	preserved []intent.PreservedHostname

	// events, when set, receives lifecycle notifications for record and
	// sync-cycle events.
	events eventbus.Sink

	// ipResolver, when set, supplies the host's public IP(s) to the Intent
	// Builder for apex A/AAAA records left without an explicit dns.content.
	ipResolver intent.IPResolver
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithStore attaches a TrackedRecordStore, enabling grace-period orphan
// tracking instead of immediate deletion.
func WithStore(s store.Store) Option {
	return func(r *Reconciler) {
		r.store = s
	}
}

// WithGracePeriod sets how long a hostname must remain orphaned before it is
// actually deleted. Has no effect unless a store is also configured.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Reconciler) {
		r.gracePeriod = d
	}
}

// WithPreservedHostnames exempts the given hostnames from orphan cleanup.
func WithPreservedHostnames(preserved []intent.PreservedHostname) Option {
	return func(r *Reconciler) {
		r.preserved = preserved
	}
}

// WithEventBus attaches a sink for lifecycle events emitted during
// reconciliation (record created/updated/deleted/orphaned, sync completed).
func WithEventBus(sink eventbus.Sink) Option {
	return func(r *Reconciler) {
		r.events = sink
	}
}

// WithIPResolver attaches the public-IP resolver the Intent Builder uses for
// apex A/AAAA records whose content isn't pinned by a dns.content label.
func WithIPResolver(resolver intent.IPResolver) Option {
	return func(r *Reconciler) {
		r.ipResolver = resolver
	}
}

// New creates a new Reconciler with the given dependencies.
//
// The reconciler requires:
//   - docker: Client for listing workloads
//   - sources: Registry of hostname extractors (Traefik, etc.)
//   - providers: Registry of DNS provider instances
func New(
	dockerClient *docker.Client,
	sources *source.Registry,
	providers *provider.Registry,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		docker:         dockerClient,
		sources:        sources,
		providers:      providers,
		config:         DefaultConfig(),
		logger:         slog.Default(),
		knownHostnames: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile performs a full reconciliation of DNS records.
//
// This method:
//  1. Lists all Docker workloads
//  2. Extracts hostnames from each workload's labels
//  3. Creates DNS records for new hostnames
//  4. Optionally deletes records for removed hostnames (orphan cleanup)
//
// Returns a Result containing details of all actions taken.
// The result includes timing, counts, and any errors encountered.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping")
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Info("starting reconciliation",
		slog.Bool("dry_run", r.config.DryRun),
		slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
	)

	result := NewResult(r.config.DryRun)

	// Step 1: List all workloads
	workloads, err := r.docker.ListWorkloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workloads: %w", err)
	}
	result.WorkloadsScanned = len(workloads)

	r.logger.Debug("scanned workloads",
		slog.Int("count", len(workloads)),
		slog.String("mode", r.docker.Mode().String()),
	)

	// Step 2: Build one Observation per workload. In "traefik" mode the
	// registered Source Watcher extracts hostnames from router-rule labels
	// up front; in "direct" mode Hostnames is left empty and the Intent
	// Builder derives them itself from dns.hostname / dns.domain+dns.subdomain
	// / dns.host.N labels (spec.md §4.1/§4.2).
	observations := make([]intent.Observation, 0, len(workloads))
	directMode := r.config.OperationMode == "direct"

	for _, workload := range workloads {
		obs := intent.Observation{
			ContainerID: workload.ID,
			Labels:      workload.Labels,
		}

		if directMode {
			obs.RecordSource = intent.SourceContainer
		} else {
			hostnames := r.sources.ExtractAll(ctx, workload.Labels)

			validation := hostnames.ValidateAll()
			for _, inv := range validation.Invalid {
				r.logger.Warn("skipping invalid hostname from workload",
					slog.String("workload", workload.Name),
					slog.String("hostname", inv.Hostname.Name),
					slog.String("source", inv.Hostname.Source),
					slog.String("error", inv.Error.Error()),
				)
				result.HostnamesInvalid++
			}
			hostnames = validation.Valid

			if len(hostnames) > 0 {
				r.logger.Debug("extracted hostnames from workload",
					slog.String("workload", workload.Name),
					slog.Int("count", len(hostnames)),
					slog.Any("hostnames", hostnames.Names()),
				)
			}

			obs.Hostnames = hostnames.Names()
			obs.RecordSource = intent.SourceTraefik
		}

		observations = append(observations, obs)
	}

	// Step 2b: Discover hostnames from static config files (Traefik YAML,
	// etc). These have no container/label context, so each becomes its own
	// Observation with the hostname pre-populated.
	fileHostnames := r.sources.DiscoverAll(ctx)
	if len(fileHostnames) > 0 {
		validation := fileHostnames.ValidateAll()
		for _, inv := range validation.Invalid {
			r.logger.Warn("skipping invalid hostname from file",
				slog.String("hostname", inv.Hostname.Name),
				slog.String("source", inv.Hostname.Source),
				slog.String("router", inv.Hostname.Router),
				slog.String("error", inv.Error.Error()),
			)
			result.HostnamesInvalid++
		}
		fileHostnames = validation.Valid

		r.logger.Debug("discovered hostnames from files",
			slog.Int("count", len(fileHostnames)),
			slog.Any("hostnames", fileHostnames.Names()),
		)
		for _, hostname := range fileHostnames {
			observations = append(observations, intent.Observation{
				ContainerID:  "file:" + hostname.Name,
				Hostnames:    []string{hostname.Name},
				RecordSource: intent.SourceTraefik,
			})
		}
	}

	// Step 3: Run the Intent Builder over the cycle's observations to derive
	// the deduplicated DesiredRecord set (spec.md §4.2).
	providerInfos := r.buildProviderInfos()
	router := intent.NewRouter(r.config.RoutingMode, r.config.MultiProviderSameZone, providerInfos)
	builderOpts := []intent.Option{
		intent.WithLogger(r.logger),
		intent.WithDefaultManage(r.config.DefaultManage),
	}
	if r.ipResolver != nil {
		builderOpts = append(builderOpts, intent.WithIPResolver(r.ipResolver))
	}
	builder := intent.NewBuilder(router, providerInfos, builderOpts...)

	buildResult := builder.Build(ctx, observations, nil, nil)
	for _, buildErr := range buildResult.Errors {
		if _, ok := buildErr.(*intent.ConflictError); ok {
			result.HostnamesDuplicate++
		} else {
			result.HostnamesInvalid++
		}
		r.logger.Warn("intent builder skipped hostname",
			slog.String("error", buildErr.Error()),
		)
	}

	discoveredHostnames := make(map[string]struct{}, len(buildResult.Records))
	for _, rec := range buildResult.Records {
		discoveredHostnames[rec.Hostname] = struct{}{}
	}
	result.HostnamesDiscovered = len(discoveredHostnames)

	r.logger.Info("hostname extraction complete",
		slog.Int("workloads", len(workloads)),
		slog.Int("hostnames", len(discoveredHostnames)),
	)

	// Build record cache for all providers (single List() call per provider)
	var cache *recordCache
	if !r.config.DryRun {
		cache = newRecordCache(ctx, r.providers, r.logger)
	}

	// Step 4: Ensure records exist for every DesiredRecord the Intent
	// Builder produced. Each DesiredRecord carries its own type/content/
	// TTL/SRV data and resolved ProviderID, passed through as RecordHints so
	// the same RecordHints-aware ensureRecord path (actions.go) applies it.
	for _, rec := range buildResult.Records {
		actions := r.ensureRecord(ctx, desiredRecordToHostname(rec), cache)
		for _, action := range actions {
			result.AddAction(action)
		}
	}

	// Step 4: Orphan cleanup (if enabled)
	var orphansDeleted int
	if r.config.CleanupOrphans {
		currentHostnames := make(map[string]*source.Hostname, len(discoveredHostnames))
		for h := range discoveredHostnames {
			currentHostnames[h] = &source.Hostname{Name: h}
		}
		orphanActions := r.cleanupOrphans(ctx, currentHostnames, cache)
		for _, action := range orphanActions {
			if action.Type == ActionDelete && action.Status == StatusSuccess {
				orphansDeleted++
			}
			result.AddAction(action)
		}
	}

	// Update known hostnames for next orphan check
	r.mu.Lock()
	r.knownHostnames = discoveredHostnames
	r.mu.Unlock()

	result.Complete()

	// Record metrics
	r.recordMetrics(result)

	r.logger.Info("reconciliation complete",
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("deleted", result.DeletedCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Int("skipped", len(result.Skipped())),
		slog.Duration("duration", result.Duration()),
	)

	r.publish(ctx, eventbus.SyncCompleted, eventbus.SyncCompletedPayload{
		Created:  result.CreatedCount(),
		Updated:  result.UpdatedCount(),
		Deleted:  result.DeletedCount(),
		Orphaned: orphansDeleted,
		Failed:   result.FailedCount(),
		Duration: result.Duration(),
	})

	return result, nil
}

// buildProviderInfos projects the registry's configured instances into the
// Intent Builder's ProviderInfo shape, in registry priority order (the first
// entry is primary-only's default and auto-with-fallback's first try).
func (r *Reconciler) buildProviderInfos() []intent.ProviderInfo {
	instances := r.providers.All()
	infos := make([]intent.ProviderInfo, 0, len(instances))
	for i, inst := range instances {
		infos = append(infos, intent.ProviderInfo{
			ID:         inst.Name(),
			Type:       inst.Type(),
			Zone:       inst.Zone(),
			DefaultTTL: inst.TTL,
			Features:   inst.Provider.Features(),
			Priority:   i,
		})
	}
	return infos
}

// desiredRecordToHostname converts one Intent Builder DesiredRecord into the
// source.Hostname shape ensureRecord/ensureRecordForProvider consume, so the
// existing RecordHints-aware record-creation path applies it unchanged.
func desiredRecordToHostname(rec intent.DesiredRecord) *source.Hostname {
	hints := &source.RecordHints{
		Type:     string(rec.Type),
		Target:   rec.Content,
		TTL:      rec.TTL,
		Provider: rec.ProviderID,
		Flags:    rec.Flags,
		Tag:      rec.Tag,
		Proxied:  rec.Proxied,
	}
	if rec.Type == provider.RecordTypeSRV && rec.Priority != nil && rec.Weight != nil && rec.Port != nil {
		hints.SRV = &source.SRVHints{
			Priority: *rec.Priority,
			Weight:   *rec.Weight,
			Port:     *rec.Port,
		}
	}
	return &source.Hostname{
		Name:        rec.Hostname,
		Source:      string(rec.Source),
		RecordHints: hints,
	}
}

// publish is a nil-safe wrapper around the configured event sink.
func (r *Reconciler) publish(ctx context.Context, eventType eventbus.Type, payload any) {
	if r.events == nil {
		return
	}
	r.events.Publish(ctx, eventType, payload)
}

// ReconcileHostname performs reconciliation for a single hostname.
// This is useful for event-driven updates when a specific workload changes.
// Note: This does not use the record cache since it's a single hostname operation.
func (r *Reconciler) ReconcileHostname(ctx context.Context, hostname string) (*Result, error) {
	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping hostname",
			slog.String("hostname", hostname),
		)
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("reconciling single hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)
	result.HostnamesDiscovered = 1

	// No cache for single-hostname reconciliation (not worth it for one query)
	actions := r.ensureRecord(ctx, &source.Hostname{Name: hostname}, nil)
	for _, action := range actions {
		result.AddAction(action)
	}

	// Track this hostname as known
	r.mu.Lock()
	r.knownHostnames[hostname] = struct{}{}
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// RemoveHostname removes DNS records for a hostname that is no longer needed.
// This is useful for event-driven cleanup when a workload is removed.
func (r *Reconciler) RemoveHostname(ctx context.Context, hostname string) (*Result, error) {
	if !r.config.Enabled {
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("removing hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)

	actions := r.deleteRecord(ctx, hostname)
	for _, action := range actions {
		result.AddAction(action)
	}

	// Remove from known hostnames
	r.mu.Lock()
	delete(r.knownHostnames, hostname)
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// ensureRecord, ensureRecordForProvider, and ensureOwnershipRecord live in
// actions.go: they are RecordHints-aware, since Reconcile builds a
// source.Hostname per DesiredRecord with RecordHints populated from the
// Intent Builder's output (see desiredRecordToHostname above).

// deleteRecord removes DNS records for a hostname from all matching providers.
// Also deletes ownership TXT records if ownership tracking is enabled.
func (r *Reconciler) deleteRecord(ctx context.Context, hostname string) []Action {
	var actions []Action

	matchingProviders := r.providers.MatchingProviders(hostname)

	for _, inst := range matchingProviders {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
		}

		if r.config.DryRun {
			action.Status = StatusSuccess
			r.logger.Info("would delete record (dry-run)",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.Bool("ownership_tracking", r.config.OwnershipTracking),
			)
		} else {
			err := inst.DeleteRecord(ctx, hostname)
			if err != nil {
				action.Status = StatusFailed
				action.Error = err.Error()
				r.logger.Error("failed to delete record",
					slog.String("hostname", hostname),
					slog.String("provider", inst.Name()),
					slog.String("error", err.Error()),
				)
			} else {
				action.Status = StatusSuccess
				r.logger.Info("deleted record",
					slog.String("hostname", hostname),
					slog.String("provider", inst.Name()),
				)

				// Also delete ownership TXT record if tracking is enabled
				if r.config.OwnershipTracking {
					if ownerErr := inst.DeleteOwnershipRecord(ctx, hostname); ownerErr != nil {
						r.logger.Warn("failed to delete ownership record",
							slog.String("hostname", hostname),
							slog.String("provider", inst.Name()),
							slog.String("error", ownerErr.Error()),
						)
					} else {
						r.logger.Debug("deleted ownership record",
							slog.String("hostname", hostname),
							slog.String("provider", inst.Name()),
						)
					}
				}
			}
		}

		actions = append(actions, action)
	}

	return actions
}

// deleteRecordWithOwnershipCheck removes DNS records only if we own them (have
// an ownership TXT record), across every provider matching hostname. It
// delegates to the cache-aware managed-mode deletion used by orphan cleanup
// so both paths agree on what "owned" means.
func (r *Reconciler) deleteRecordWithOwnershipCheck(ctx context.Context, hostname string, cache *recordCache) []Action {
	var actions []Action
	for _, inst := range r.providers.MatchingProviders(hostname) {
		actions = append(actions, r.deleteManagedForProvider(ctx, hostname, inst, cache)...)
	}
	return actions
}

// Config returns the current reconciler configuration.
func (r *Reconciler) Config() Config {
	return r.config
}

// SetEnabled enables or disables reconciliation.
func (r *Reconciler) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
	r.logger.Info("reconciliation enabled state changed",
		slog.Bool("enabled", enabled),
	)
}

// SetDryRun enables or disables dry-run mode.
func (r *Reconciler) SetDryRun(dryRun bool) {
	r.config.DryRun = dryRun
	r.logger.Info("dry-run mode changed",
		slog.Bool("dry_run", dryRun),
	)
}

// KnownHostnames returns a copy of the currently known hostnames.
// This is primarily useful for debugging and testing.
func (r *Reconciler) KnownHostnames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hostnames := make([]string, 0, len(r.knownHostnames))
	for h := range r.knownHostnames {
		hostnames = append(hostnames, h)
	}
	return hostnames
}

// RecoverOwnership scans all providers for ownership TXT records and populates
// the knownHostnames map. This should be called once on startup before the first
// reconciliation to enable orphan cleanup for records created before a restart.
//
// Only runs if both CleanupOrphans and OwnershipTracking are enabled.
func (r *Reconciler) RecoverOwnership(ctx context.Context) error {
	if !r.config.CleanupOrphans || !r.config.OwnershipTracking {
		r.logger.Debug("ownership recovery skipped",
			slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
			slog.Bool("ownership_tracking", r.config.OwnershipTracking),
		)
		return nil
	}

	r.logger.Info("recovering ownership state from DNS providers")

	totalRecovered := 0
	for _, inst := range r.providers.All() {
		hostnames, err := inst.RecoverOwnedHostnames(ctx)
		if err != nil {
			r.logger.Warn("failed to recover ownership from provider",
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if len(hostnames) > 0 {
			r.mu.Lock()
			for _, hostname := range hostnames {
				r.knownHostnames[hostname] = struct{}{}
			}
			r.mu.Unlock()

			r.logger.Info("recovered ownership records",
				slog.String("provider", inst.Name()),
				slog.Int("count", len(hostnames)),
			)
			totalRecovered += len(hostnames)
		}
	}

	r.logger.Info("ownership recovery complete",
		slog.Int("total_hostnames", totalRecovered),
	)

	return nil
}

// recordMetrics records Prometheus metrics from a reconciliation result.
func (r *Reconciler) recordMetrics(result *Result) {
	// Record reconciliation outcome
	status := "success"
	if result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()

	// Record duration
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())

	// Record workload and hostname counts
	metrics.WorkloadsScanned.Set(float64(result.WorkloadsScanned))
	metrics.HostnamesDiscovered.Set(float64(result.HostnamesDiscovered))

	// Record per-action metrics
	for _, action := range result.Actions {
		switch action.Type {
		case ActionCreate:
			if action.Status == StatusSuccess {
				metrics.RecordsCreatedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "create").Inc()
			}
		case ActionDelete:
			if action.Status == StatusSuccess {
				metrics.RecordsDeletedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "delete").Inc()
			}
		case ActionSkip:
			reason := "unknown"
			if action.Error != "" {
				reason = action.Error
			}
			// Normalize common skip reasons
			if reason == "no matching provider" {
				reason = "no_provider"
			}
			metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
		}
	}
}
