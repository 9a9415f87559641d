package intent

import "fmt"

// ValidationError reports a DesiredRecord that failed type-specific
// syntactic validation (spec.md §4.2 step 7). A cycle with validation
// errors still processes every other hostname; the caller decides whether
// to surface these as system.error events.
type ValidationError struct {
	Hostname string
	Field    string
	Value    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intent: %s: field %q value %q: %s", e.Hostname, e.Field, e.Value, e.Reason)
}

// ConflictError reports the same (providerId, hostname, type) key claimed
// by two distinct containers with different content. Per spec.md §4.2:
// "duplicates across containers raise an error event and the conflicting
// hostname is skipped."
type ConflictError struct {
	Hostname    string
	Type        string
	FirstValue  string
	SecondValue string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("intent: conflicting %s record for %s: %q vs %q", e.Type, e.Hostname, e.FirstValue, e.SecondValue)
}

// RoutingConflictError reports Open Question (a): round-robin routing with
// dns_multi_provider_same_zone=false hitting two providers that share a
// zone for the same hostname.
type RoutingConflictError struct {
	Hostname string
	ZoneA    string
	ZoneB    string
}

func (e *RoutingConflictError) Error() string {
	return fmt.Sprintf("intent: round-robin routing conflict for %s: providers share zone %q", e.Hostname, e.ZoneA)
}
