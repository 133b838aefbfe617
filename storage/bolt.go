package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDocuments = []byte("documents")

// BoltStore persists documents in a single bbolt file. bbolt admits one
// writer at a time, so every RunInTransaction body runs fully serialized and
// the optimistic-conflict path of MemoryStore never triggers here.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (and migrates) the document database at path.
func OpenBolt(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

type boltTxn struct {
	bucket   *bolt.Bucket
	readOnly bool
}

func (t *boltTxn) Get(key string, dst any) (bool, error) {
	raw := t.bucket.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (t *boltTxn) Set(key string, doc any) error {
	if t.readOnly {
		return fmt.Errorf("storage: set %q in read-only transaction", key)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return t.bucket.Put([]byte(key), raw)
}

func (t *boltTxn) List(prefix string, fn func(key string, raw []byte) error) error {
	cursor := t.bucket.Cursor()
	seek := []byte(prefix)
	for key, raw := cursor.Seek(seek); key != nil && bytes.HasPrefix(key, seek); key, raw = cursor.Next() {
		if err := fn(string(key), raw); err != nil {
			return err
		}
	}
	return nil
}

// RunInTransaction implements Store.
func (s *BoltStore) RunInTransaction(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTxn{bucket: tx.Bucket(bucketDocuments)})
	})
}

// View implements Store.
func (s *BoltStore) View(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTxn{bucket: tx.Bucket(bucketDocuments), readOnly: true})
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
