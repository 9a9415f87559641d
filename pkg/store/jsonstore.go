package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/sys/atomicwriter"
)

// jsonDocument is the on-disk shape written by JSONStore: a flat array is
// easier to diff and hand-edit during an incident than a keyed map.
type jsonDocument struct {
	Version int              `json:"version"`
	Records []*TrackedRecord `json:"records"`
}

const jsonStoreVersion = 1

// JSONStore is a Store backed by a single JSON file, written atomically on
// every Commit so a crash mid-write never leaves a truncated or corrupt
// file behind (the file either has the old contents or the new ones).
type JSONStore struct {
	path string

	mu      sync.Mutex
	records map[RecordKey]*TrackedRecord
	open    bool
}

// NewJSONStore loads path if it exists, or starts empty if it does not.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:    path,
		records: make(map[RecordKey]*TrackedRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", path, err)
	}
	for _, rec := range doc.Records {
		s.records[rec.Key()] = rec
	}
	return s, nil
}

func (s *JSONStore) persistLocked() error {
	doc := jsonDocument{Version: jsonStoreVersion}
	for _, rec := range s.records {
		doc.Records = append(doc.Records, rec)
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshaling state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("store: writing %s: %w", s.path, err)
	}
	return nil
}

// jsonTx stages writes in memory and persists the whole document to disk
// exactly once, on Commit.
type jsonTx struct {
	store  *JSONStore
	closed bool

	upserts map[RecordKey]*TrackedRecord
	deletes map[RecordKey]struct{}
}

func (tx *jsonTx) Commit(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.closed {
		return ErrTxAlreadyClosed
	}
	tx.closed = true
	tx.store.open = false

	for key := range tx.deletes {
		delete(tx.store.records, key)
	}
	for key, rec := range tx.upserts {
		tx.store.records[key] = rec
	}

	return tx.store.persistLocked()
}

func (tx *jsonTx) Rollback(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.closed {
		return ErrTxAlreadyClosed
	}
	tx.closed = true
	tx.store.open = false
	return nil
}

func (s *JSONStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil, ErrNestedTransaction
	}
	s.open = true

	return &jsonTx{
		store:   s,
		upserts: make(map[RecordKey]*TrackedRecord),
		deletes: make(map[RecordKey]struct{}),
	}, nil
}

func (s *JSONStore) GetByKey(ctx context.Context, key RecordKey) (*TrackedRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	clone := *rec
	return &clone, true, nil
}

func (s *JSONStore) List(ctx context.Context, filter Filter) ([]*TrackedRecord, error) {
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

func (s *JSONStore) Upsert(ctx context.Context, tx Tx, record *TrackedRecord) error {
	jtx, ok := tx.(*jsonTx)
	if !ok || jtx.store != s {
		return fmt.Errorf("store: Tx does not belong to this JSONStore")
	}
	if jtx.closed {
		return ErrTxAlreadyClosed
	}
	clone := *record
	jtx.upserts[record.Key()] = &clone
	delete(jtx.deletes, record.Key())
	return nil
}

func (s *JSONStore) Delete(ctx context.Context, tx Tx, key RecordKey) error {
	jtx, ok := tx.(*jsonTx)
	if !ok || jtx.store != s {
		return fmt.Errorf("store: Tx does not belong to this JSONStore")
	}
	if jtx.closed {
		return ErrTxAlreadyClosed
	}
	jtx.deletes[key] = struct{}{}
	delete(jtx.upserts, key)
	return nil
}
