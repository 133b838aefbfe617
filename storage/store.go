package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrConflict is returned when a transaction loses a write race and has
	// exhausted its transparent retries. Callers should re-run the operation
	// with the same inputs; an idempotent operation will then observe the
	// winner's writes.
	ErrConflict = errors.New("storage: transaction conflict")
	// ErrClosed is returned when the store has been shut down.
	ErrClosed = errors.New("storage: store closed")
)

// Txn exposes the documents visible to a single atomic unit of work. Reads
// observe a consistent snapshot; writes become visible only if the enclosing
// transaction commits.
type Txn interface {
	// Get unmarshals the document stored under key into dst and reports
	// whether the document exists. A missing document is not an error.
	Get(key string, dst any) (bool, error)
	// Set stages dst's JSON encoding under key. The write is applied
	// atomically with every other write in the transaction at commit time.
	Set(key string, doc any) error
	// List invokes fn for every document whose key starts with prefix, in
	// ascending key order. Staged writes from the same transaction are
	// included.
	List(prefix string, fn func(key string, raw []byte) error) error
}

// Store is a transactional document store. Implementations must guarantee
// serializable isolation for the documents touched within one transaction:
// either every staged write commits, or none do.
type Store interface {
	// RunInTransaction executes fn inside a fresh transaction and commits it
	// when fn returns nil. Implementations may transparently retry fn when a
	// concurrent commit invalidates its reads; fn must therefore be safe to
	// re-execute.
	RunInTransaction(ctx context.Context, fn func(Txn) error) error
	// View executes fn against a read-only snapshot.
	View(ctx context.Context, fn func(Txn) error) error
	Close() error
}

// Key joins path segments into a document key. Segments are separated by '/'
// so that related documents group under a common List prefix.
func Key(segments ...string) string {
	return strings.Join(segments, "/")
}
