// Package eventbus implements the in-process publish/subscribe bus that
// carries lifecycle events (record created/updated/deleted/orphaned,
// sync-cycle completed, errors) from the Reconciler and Orphan Manager to
// downstream collaborators such as the webhook dispatcher and audit log.
//
// Those collaborators are out of scope for this module (see spec.md §1);
// the bus only needs to deliver events reliably to whatever subscribes.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trafegodns/trafegodns/internal/metrics"
)

// Type identifies the kind of event on the bus. Values match the canonical
// event types named in spec.md §6.
type Type string

const (
	RecordCreated  Type = "dns.record.created"
	RecordUpdated  Type = "dns.record.updated"
	RecordDeleted  Type = "dns.record.deleted"
	RecordOrphaned Type = "dns.record.orphaned"

	TunnelCreated  Type = "tunnel.created"
	TunnelDeployed Type = "tunnel.deployed"
	TunnelDeleted  Type = "tunnel.deleted"

	SyncCompleted Type = "system.sync.completed"
	SystemError   Type = "system.error"
)

// Event is a single bus message: `{id, type, timestamp, payload}`.
type Event struct {
	ID        string
	Type      Type
	Timestamp time.Time
	Payload   any
}

// SyncCompletedPayload is the payload shape for a SyncCompleted event,
// matching §7's "counts {created, updated, deleted, orphaned, failed}".
type SyncCompletedPayload struct {
	Provider string
	Created  int
	Updated  int
	Deleted  int
	Orphaned int
	Failed   int
	Duration time.Duration
}

// ErrorPayload is the payload shape for a SystemError event.
type ErrorPayload struct {
	Provider string
	Hostname string
	Reason   string
}

// RecordPayload is the payload shape for record lifecycle events.
type RecordPayload struct {
	Provider string
	Hostname string
	Type     string
	Content  string
}

// TunnelPayload is the payload shape for tunnel lifecycle events
// (TunnelCreated/TunnelDeployed/TunnelDeleted).
type TunnelPayload struct {
	TunnelID string
	Hostname string
	Action   string
}

// Sink is the narrow interface the Reconciler and Orphan Manager depend on;
// it lets tests substitute a recording fake without pulling in Bus.
type Sink interface {
	Publish(ctx context.Context, eventType Type, payload any)
}

// subscriberBuffer is the default per-subscriber channel depth. A slow
// subscriber drops events past this depth rather than blocking publishers;
// this keeps the bus's Publish call non-blocking, per the concurrency model
// in spec.md §5 (the bus only publishes; it never fans back pressure into
// the Reconciler).
const subscriberBuffer = 64

// Bus is an in-memory, in-process pub/sub Event Bus. It preserves
// per-hostname order because Publish appends to each subscriber's channel
// synchronously from the caller's goroutine, and the Reconciler emits
// events for one hostname at a time in its deterministic action order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	logger      *slog.Logger
}

// New creates an empty Event Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber and returns a channel of events and
// an unsubscribe function. The channel is closed when Unsubscribe is called.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}

	return ch, unsubscribe
}

// Publish constructs an Event with a fresh ID and current timestamp and
// delivers it to every subscriber. Delivery never blocks: a subscriber
// whose buffer is full has the event dropped for it, with a warning logged.
func (b *Bus) Publish(ctx context.Context, eventType Type, payload any) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		case <-ctx.Done():
			return
		default:
			b.logger.Warn("event bus subscriber buffer full, dropping event",
				slog.String("event_type", string(eventType)),
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
