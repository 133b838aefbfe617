package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// maxTxnAttempts bounds how often a memory transaction is transparently
// re-executed after losing a write race before ErrConflict surfaces.
const maxTxnAttempts = 32

// MemoryStore is an in-memory Store with per-document optimistic conflict
// detection. Two transactions may proceed fully in parallel unless they touch
// the same document, in which case the loser's commit is rejected and the
// transaction body is re-run against the winner's state.
//
// It backs tests and doubles as the reference model for the conflict
// semantics persistent implementations must honour.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	versions map[string]uint64
	closed   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

type memTxn struct {
	store *MemoryStore
	// reads records the version of every document observed, including
	// version 0 for documents that did not exist. Commit fails if any of
	// them changed, which is what makes the "both racers observe not-found,
	// only one wins the write" idempotency pattern safe.
	reads    map[string]uint64
	writes   map[string][]byte
	readOnly bool
}

func (t *memTxn) Get(key string, dst any) (bool, error) {
	if raw, ok := t.writes[key]; ok {
		return true, json.Unmarshal(raw, dst)
	}
	t.store.mu.Lock()
	raw, ok := t.store.docs[key]
	t.reads[key] = t.store.versions[key]
	t.store.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (t *memTxn) Set(key string, doc any) error {
	if t.readOnly {
		return fmt.Errorf("storage: set %q in read-only transaction", key)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	t.writes[key] = raw
	return nil
}

func (t *memTxn) List(prefix string, fn func(key string, raw []byte) error) error {
	merged := make(map[string][]byte)
	t.store.mu.Lock()
	for key, raw := range t.store.docs {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			merged[key] = raw
			t.reads[key] = t.store.versions[key]
		}
	}
	t.store.mu.Unlock()
	for key, raw := range t.writes {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			merged[key] = raw
		}
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn(key, merged[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) commit(t *memTxn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for key, version := range t.reads {
		if s.versions[key] != version {
			return ErrConflict
		}
	}
	for key, raw := range t.writes {
		s.docs[key] = raw
		s.versions[key]++
	}
	return nil
}

// RunInTransaction implements Store. The body is re-executed on conflict up
// to maxTxnAttempts times before the conflict is reported to the caller.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return ErrClosed
		}
		txn := &memTxn{
			store:  s,
			reads:  make(map[string]uint64),
			writes: make(map[string][]byte),
		}
		if err := fn(txn); err != nil {
			return err
		}
		err := s.commit(txn)
		if err == nil {
			return nil
		}
		if err != ErrConflict {
			return err
		}
	}
	return ErrConflict
}

// View implements Store.
func (s *MemoryStore) View(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	txn := &memTxn{
		store:    s,
		reads:    make(map[string]uint64),
		writes:   make(map[string][]byte),
		readOnly: true,
	}
	return fn(txn)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
