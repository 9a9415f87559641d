package store

import (
	"context"
	"errors"
	"sync"
)

// ErrTxAlreadyClosed is returned by Commit/Rollback called twice on the same Tx.
var ErrTxAlreadyClosed = errors.New("store: transaction already committed or rolled back")

// ErrNestedTransaction is returned by Begin when called while a transaction
// is already open on the same Store. Per spec.md §9: "the spec mandates a
// single transaction manager and a rule that transactions never nest —
// callers compose by passing the active transaction, not by re-opening one."
var ErrNestedTransaction = errors.New("store: transactions do not nest; pass the active transaction instead")

// Tx represents one persistence transaction. Orphan state transitions,
// ExternalID tracking, and the audit-log append that caused them happen
// within the same Tx (spec.md §5).
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the TrackedRecordStore interface seam the Reconciler depends on.
// Concrete implementations: MemStore (default, used by tests and the single
// in-process daemon) and JSONStore (durable, atomic-file-backed).
type Store interface {
	// Begin opens a new transaction. Returns ErrNestedTransaction if one is
	// already open.
	Begin(ctx context.Context) (Tx, error)

	// GetByKey returns the active (non-orphaned-and-deleted) TrackedRecord
	// for key, or ok=false if none exists.
	GetByKey(ctx context.Context, key RecordKey) (record *TrackedRecord, ok bool, err error)

	// List returns all TrackedRecords matching filter.
	List(ctx context.Context, filter Filter) ([]*TrackedRecord, error)

	// Upsert creates or replaces the TrackedRecord for record.Key() within tx.
	Upsert(ctx context.Context, tx Tx, record *TrackedRecord) error

	// Delete removes the TrackedRecord for key within tx. Deleting an
	// absent key is a no-op (idempotent), matching provider-adapter delete
	// semantics.
	Delete(ctx context.Context, tx Tx, key RecordKey) error
}

// memTx is MemStore's transaction: writes accumulate in a staging buffer
// and are only applied to the live map on Commit, so a Rollback leaves the
// store untouched.
type memTx struct {
	store  *MemStore
	closed bool

	upserts map[RecordKey]*TrackedRecord
	deletes map[RecordKey]struct{}
}

func (tx *memTx) Commit(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.closed {
		return ErrTxAlreadyClosed
	}
	tx.closed = true

	for key := range tx.deletes {
		delete(tx.store.records, key)
	}
	for key, rec := range tx.upserts {
		tx.store.records[key] = rec
	}
	tx.store.open = false
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.closed {
		return ErrTxAlreadyClosed
	}
	tx.closed = true
	tx.store.open = false
	return nil
}

// MemStore is an in-memory Store implementation: the reference/default
// TrackedRecordStore, and what every package's tests use.
type MemStore struct {
	mu      sync.Mutex
	records map[RecordKey]*TrackedRecord
	open    bool // true while a transaction is in flight
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[RecordKey]*TrackedRecord)}
}

func (s *MemStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil, ErrNestedTransaction
	}
	s.open = true

	return &memTx{
		store:   s,
		upserts: make(map[RecordKey]*TrackedRecord),
		deletes: make(map[RecordKey]struct{}),
	}, nil
}

func (s *MemStore) GetByKey(ctx context.Context, key RecordKey) (*TrackedRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	clone := *rec
	return &clone, true, nil
}

func (s *MemStore) List(ctx context.Context, filter Filter) ([]*TrackedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*TrackedRecord
	for _, rec := range s.records {
		if filter.Matches(rec) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemStore) Upsert(ctx context.Context, tx Tx, record *TrackedRecord) error {
	mtx, ok := tx.(*memTx)
	if !ok || mtx.store != s {
		return errors.New("store: Tx does not belong to this MemStore")
	}
	if mtx.closed {
		return ErrTxAlreadyClosed
	}
	clone := *record
	mtx.upserts[record.Key()] = &clone
	delete(mtx.deletes, record.Key())
	return nil
}

func (s *MemStore) Delete(ctx context.Context, tx Tx, key RecordKey) error {
	mtx, ok := tx.(*memTx)
	if !ok || mtx.store != s {
		return errors.New("store: Tx does not belong to this MemStore")
	}
	if mtx.closed {
		return ErrTxAlreadyClosed
	}
	mtx.deletes[key] = struct{}{}
	delete(mtx.upserts, key)
	return nil
}
