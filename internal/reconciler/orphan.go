// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/trafegodns/trafegodns/internal/eventbus"
	"github.com/trafegodns/trafegodns/pkg/intent"
	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
	"github.com/trafegodns/trafegodns/pkg/store"
)

// cleanupOrphans removes records for hostnames that are no longer in any workload.
// A hostname becomes Orphaned the first cycle it disappears; if a store and a
// grace period are configured it is only actually Deleted once that grace
// period has elapsed without the hostname reappearing. Without a store,
// orphans are deleted immediately, matching the reconciler's original
// behavior.
//
// Deletion itself still respects each provider instance's operational mode:
//   - additive: never delete, skip this hostname for this provider
//   - managed (default): only delete if ownership tracking confirms we own it
//   - authoritative: delete any in-scope record without requiring ownership
func (r *Reconciler) cleanupOrphans(ctx context.Context, currentHostnames map[string]*source.Hostname, cache *recordCache) []Action {
	var actions []Action

	r.mu.RLock()
	previousHostnames := make(map[string]struct{}, len(r.knownHostnames))
	for h := range r.knownHostnames {
		previousHostnames[h] = struct{}{}
	}
	r.mu.RUnlock()

	// Find hostnames that were known before but are no longer present
	for hostname := range previousHostnames {
		if _, stillExists := currentHostnames[hostname]; stillExists {
			r.clearOrphanMarks(ctx, hostname)
			continue
		}

		if exempt, reason := intent.MatchAny(r.preserved, hostname); exempt {
			r.logger.Info("orphan hostname is preserved, skipping cleanup",
				slog.String("hostname", hostname),
				slog.String("reason", reason),
			)
			continue
		}

		r.logger.Info("detected orphan hostname",
			slog.String("hostname", hostname),
		)

		// Process each matching provider with its own mode, gated by the
		// grace-period state machine.
		matchingProviders := r.providers.MatchingProviders(hostname)
		for _, inst := range matchingProviders {
			if !r.orphanGraceDue(ctx, inst.Name(), hostname, inst.RecordType) {
				continue
			}
			deleteActions := r.deleteOrphanForProvider(ctx, hostname, inst, cache)
			actions = append(actions, deleteActions...)
			r.forgetTrackedRecord(ctx, inst.Name(), hostname, inst.RecordType)
		}
	}

	return actions
}

// orphanGraceDue reports whether a (provider, hostname, type) orphan is
// ready for real deletion. With no store or no grace period configured it
// always returns true (immediate deletion). Otherwise the first call marks
// the record Orphaned with a timestamp and returns false; later calls return
// true once that timestamp is at least gracePeriod old.
func (r *Reconciler) orphanGraceDue(ctx context.Context, providerID, hostname string, recType provider.RecordType) bool {
	if r.store == nil || r.gracePeriod <= 0 || r.config.DryRun {
		return true
	}

	key := store.RecordKey{ProviderID: providerID, Hostname: hostname, Type: recType}
	existing, ok, err := r.store.GetByKey(ctx, key)
	if err != nil {
		r.logger.Warn("failed to read tracked record for orphan grace check",
			slog.String("hostname", hostname),
			slog.String("provider", providerID),
			slog.String("error", err.Error()),
		)
		return true
	}

	if ok && existing.OrphanedAt != nil {
		return time.Since(*existing.OrphanedAt) >= r.gracePeriod
	}

	now := time.Now()
	if !ok {
		existing = &store.TrackedRecord{
			ProviderID: providerID,
			Hostname:   hostname,
			Type:       recType,
			Managed:    true,
			CreatedAt:  now,
		}
	}
	existing.OrphanedAt = &now
	existing.UpdatedAt = now

	tx, err := r.store.Begin(ctx)
	if err != nil {
		r.logger.Warn("failed to begin store transaction for orphan tracking",
			slog.String("hostname", hostname),
			slog.String("error", err.Error()),
		)
		return true
	}
	if err := r.store.Upsert(ctx, tx, existing); err != nil {
		r.logger.Warn("failed to mark record orphaned",
			slog.String("hostname", hostname),
			slog.String("error", err.Error()),
		)
		_ = tx.Rollback(ctx)
		return true
	}
	if err := tx.Commit(ctx); err != nil {
		r.logger.Warn("failed to commit orphan mark",
			slog.String("hostname", hostname),
			slog.String("error", err.Error()),
		)
		return true
	}

	r.logger.Info("hostname entered orphan grace period",
		slog.String("hostname", hostname),
		slog.String("provider", providerID),
		slog.Duration("grace_period", r.gracePeriod),
	)
	r.publish(ctx, eventbus.RecordOrphaned, eventbus.RecordPayload{
		Provider: providerID,
		Hostname: hostname,
		Type:     string(recType),
	})
	return false
}

// clearOrphanMarks restores any tracked records for hostname to the Active
// state, called when a previously orphaned hostname reappears within its
// grace period.
func (r *Reconciler) clearOrphanMarks(ctx context.Context, hostname string) {
	if r.store == nil {
		return
	}
	for _, inst := range r.providers.MatchingProviders(hostname) {
		key := store.RecordKey{ProviderID: inst.Name(), Hostname: hostname, Type: inst.RecordType}
		existing, ok, err := r.store.GetByKey(ctx, key)
		if err != nil || !ok || existing.OrphanedAt == nil {
			continue
		}
		existing.OrphanedAt = nil
		existing.UpdatedAt = time.Now()

		tx, err := r.store.Begin(ctx)
		if err != nil {
			continue
		}
		if err := r.store.Upsert(ctx, tx, existing); err != nil {
			_ = tx.Rollback(ctx)
			continue
		}
		_ = tx.Commit(ctx)
	}
}

// forgetTrackedRecord removes the store entry for a (provider, hostname,
// type) once its orphan record has actually been deleted at the provider.
func (r *Reconciler) forgetTrackedRecord(ctx context.Context, providerID, hostname string, recType provider.RecordType) {
	if r.store == nil || r.config.DryRun {
		return
	}
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return
	}
	key := store.RecordKey{ProviderID: providerID, Hostname: hostname, Type: recType}
	if err := r.store.Delete(ctx, tx, key); err != nil {
		_ = tx.Rollback(ctx)
		return
	}
	_ = tx.Commit(ctx)
}

// deleteOrphanForProvider handles orphan deletion for a single provider instance,
// respecting that provider's operational mode.
func (r *Reconciler) deleteOrphanForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	// Check operational mode
	mode := inst.Mode
	if mode == "" {
		mode = provider.ModeManaged // default
	}

	// Additive mode: never delete
	if !mode.AllowsDelete() {
		r.logger.Info("skipping orphan deletion - additive mode",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("mode", string(mode)),
		)
		action := Action{
			Type:       ActionSkip,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
			Status:     StatusSkipped,
			Error:      "additive mode - deletions disabled",
		}
		return []Action{action}
	}

	// Authoritative mode: delete without ownership check (but only supported types in scope)
	if !mode.RequiresOwnership() {
		return r.deleteAuthoritativeForProvider(ctx, hostname, inst, cache)
	}

	// Managed mode: use ownership-based deletion
	if r.config.OwnershipTracking {
		return r.deleteManagedForProvider(ctx, hostname, inst, cache)
	}

	// Managed mode without ownership tracking: use cache-based deletion
	return r.deleteCacheOnlyForProvider(ctx, hostname, inst, cache)
}

// deleteAuthoritativeForProvider deletes orphan records in authoritative mode.
// This mode deletes any in-scope record without requiring ownership, but only
// touches record types that the provider supports (via Features).
func (r *Reconciler) deleteAuthoritativeForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
			Status:     StatusSuccess,
		}
		r.logger.Info("would delete record in authoritative mode (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{action}
	}

	// Get capabilities to know which record types are safe to delete
	caps := inst.Provider.Features()

	// Get actual records from cache
	var recordsToDelete []provider.Record
	if cache != nil {
		cachedRecords, ok := cache.getAllRecordsForHostname(inst.Name(), hostname)
		if ok && len(cachedRecords) > 0 {
			recordsToDelete = cachedRecords
		}
	}

	// If no cached records, query the provider
	if len(recordsToDelete) == 0 {
		allRecords, err := inst.Provider.List(ctx)
		if err != nil {
			r.logger.Warn("failed to list records for authoritative deletion",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			return []Action{{
				Type:       ActionDelete,
				Provider:   inst.Name(),
				Hostname:   hostname,
				RecordType: string(inst.RecordType),
				Target:     inst.Target,
				Status:     StatusFailed,
				Error:      "failed to list records: " + err.Error(),
			}}
		}
		for _, rec := range allRecords {
			if rec.Hostname == hostname {
				recordsToDelete = append(recordsToDelete, rec)
			}
		}
	}

	var actions []Action
	for _, record := range recordsToDelete {
		// Skip record types we don't support
		if !caps.SupportsRecordType(record.Type) {
			r.logger.Debug("skipping unsupported record type in authoritative mode",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
			)
			continue
		}

		// Skip ownership TXT records (we manage those separately)
		if record.Type == provider.RecordTypeTXT {
			continue
		}

		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(record.Type),
			Target:     record.Target,
		}

		var err error
		if record.Type == provider.RecordTypeSRV {
			err = inst.DeleteSRVRecord(ctx, hostname, record.Target, record.SRV)
		} else {
			err = inst.DeleteRecordByTarget(ctx, hostname, record.Type, record.Target)
		}

		if err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to delete record in authoritative mode",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("error", err.Error()),
			)
		} else {
			action.Status = StatusSuccess
			r.logger.Info("deleted record in authoritative mode",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("target", record.Target),
			)
		}
		actions = append(actions, action)
	}

	// Also delete ownership TXT record if we have one
	if r.config.OwnershipTracking {
		if ownerErr := inst.DeleteOwnershipRecord(ctx, hostname); ownerErr != nil {
			r.logger.Debug("failed to delete ownership record (may not exist)",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
			)
		}
	}

	return actions
}

// deleteManagedForProvider deletes orphan records in managed mode with ownership tracking.
// Only deletes records that have an ownership TXT marker.
func (r *Reconciler) deleteManagedForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
			Status:     StatusSuccess,
		}
		r.logger.Info("would delete record if owned (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{action}
	}

	// Check if we own this record (using cache if available)
	var hasOwnership bool
	if cache != nil {
		hasOwnership = cache.hasOwnershipRecord(inst.Name(), hostname)
	} else {
		var err error
		hasOwnership, err = inst.HasOwnershipRecord(ctx, hostname)
		if err != nil {
			r.logger.Warn("failed to check ownership record, skipping deletion",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			return []Action{{
				Type:       ActionSkip,
				Provider:   inst.Name(),
				Hostname:   hostname,
				RecordType: string(inst.RecordType),
				Target:     inst.Target,
				Status:     StatusSkipped,
				Error:      "failed to check ownership: " + err.Error(),
			}}
		}
	}

	if !hasOwnership {
		r.logger.Info("skipping orphan deletion - no ownership record (manually created?)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{{
			Type:       ActionSkip,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
			Status:     StatusSkipped,
			Error:      "no ownership record - may be manually created",
		}}
	}

	// We own this record - get actual records from cache
	var recordsToDelete []provider.Record
	if cache != nil {
		cachedRecords, ok := cache.getAllRecordsForHostname(inst.Name(), hostname)
		if ok && len(cachedRecords) > 0 {
			recordsToDelete = cachedRecords
		}
	}

	// If no cached records, query the provider
	if len(recordsToDelete) == 0 {
		allRecords, err := inst.Provider.List(ctx)
		if err != nil {
			r.logger.Warn("failed to list records for managed deletion",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			return []Action{{
				Type:       ActionDelete,
				Provider:   inst.Name(),
				Hostname:   hostname,
				RecordType: string(inst.RecordType),
				Target:     inst.Target,
				Status:     StatusFailed,
				Error:      "failed to list records: " + err.Error(),
			}}
		}
		for _, rec := range allRecords {
			// Ownership markers live under OwnershipRecordName(hostname), a
			// distinct key, so anything cached under hostname itself is a
			// real managed record regardless of type.
			if rec.Hostname == hostname {
				recordsToDelete = append(recordsToDelete, rec)
			}
		}
	}

	var actions []Action
	for _, record := range recordsToDelete {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(record.Type),
			Target:     record.Target,
		}

		var err error
		if record.Type == provider.RecordTypeSRV {
			err = inst.DeleteSRVRecord(ctx, hostname, record.Target, record.SRV)
		} else {
			err = inst.DeleteRecordByTarget(ctx, hostname, record.Type, record.Target)
		}

		if err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to delete record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("error", err.Error()),
			)
		} else {
			action.Status = StatusSuccess
			r.logger.Info("deleted record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("target", record.Target),
			)
		}
		actions = append(actions, action)
	}

	// Also delete ownership TXT record
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

	return actions
}

// deleteCacheOnlyForProvider deletes orphan records in managed mode without ownership tracking.
// Uses the cache to determine what record types exist.
func (r *Reconciler) deleteCacheOnlyForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
			Status:     StatusSuccess,
		}
		r.logger.Info("would delete record (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{action}
	}

	// Get actual records from cache
	var recordsToDelete []provider.Record
	if cache != nil {
		cachedRecords, ok := cache.getAllRecordsForHostname(inst.Name(), hostname)
		if ok && len(cachedRecords) > 0 {
			recordsToDelete = cachedRecords
		}
	}

	// If no cached records, query the provider
	if len(recordsToDelete) == 0 {
		allRecords, err := inst.Provider.List(ctx)
		if err != nil {
			r.logger.Warn("failed to list records for deletion",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			return []Action{{
				Type:       ActionDelete,
				Provider:   inst.Name(),
				Hostname:   hostname,
				RecordType: string(inst.RecordType),
				Target:     inst.Target,
				Status:     StatusFailed,
				Error:      "failed to list records: " + err.Error(),
			}}
		}
		for _, rec := range allRecords {
			if rec.Hostname == hostname {
				switch rec.Type {
				case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME, provider.RecordTypeSRV:
					recordsToDelete = append(recordsToDelete, rec)
				case provider.RecordTypeTXT:
					// Skip TXT records
				}
			}
		}
	}

	var actions []Action
	for _, record := range recordsToDelete {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(record.Type),
			Target:     record.Target,
		}

		var err error
		if record.Type == provider.RecordTypeSRV {
			err = inst.DeleteSRVRecord(ctx, hostname, record.Target, record.SRV)
		} else {
			err = inst.DeleteRecordByTarget(ctx, hostname, record.Type, record.Target)
		}

		if err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to delete record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("error", err.Error()),
			)
		} else {
			action.Status = StatusSuccess
			r.logger.Info("deleted record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("target", record.Target),
			)
		}
		actions = append(actions, action)
	}

	return actions
}

