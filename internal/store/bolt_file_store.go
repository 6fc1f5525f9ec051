package store

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"darkspeak/internal/domain"
)

var (
	filesBucket       = []byte("files")
	filesByHashBucket = []byte("files_by_hash")
)

// BoltFileStore persists File records in a single embedded transactional
// KV file. Per-record mutual exclusion comes for free: bbolt
// serializes writer transactions, so two UpdateFile calls for different
// files never block each other for longer than one transaction and two
// calls for the same file never interleave.
type BoltFileStore struct {
	db *bolt.DB
}

// OpenBoltFileStore opens (creating if absent) the bbolt file at path and
// ensures its buckets exist.
func OpenBoltFileStore(path string) (*BoltFileStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(filesByHashBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &BoltFileStore{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *BoltFileStore) Close() error { return s.db.Close() }

// SaveFile writes f, keyed by its id, and refreshes its (conversation,
// hash) secondary index entry.
func (s *BoltFileStore) SaveFile(_ context.Context, f domain.File) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putFile(tx, f)
	})
}

func putFile(tx *bolt.Tx, f domain.File) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := tx.Bucket(filesBucket).Put([]byte(f.ID), raw); err != nil {
		return err
	}
	if f.Hash == "" {
		return nil
	}
	return tx.Bucket(filesByHashBucket).Put([]byte(f.Key()), []byte(f.ID))
}

// LoadFile looks up a File by its primary id.
func (s *BoltFileStore) LoadFile(_ context.Context, id domain.FileID) (domain.File, bool, error) {
	var f domain.File
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(filesBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &f)
	})
	return f, found, err
}

// LoadFileByHash looks up a File by the secondary (conversation, hash)
// index. peer.Session matches a resumed transfer's re-offer by file id
// (LoadFile), not through this index.
func (s *BoltFileStore) LoadFileByHash(_ context.Context, conversation, hash string) (domain.File, bool, error) {
	var f domain.File
	found := false
	key := conversation + "|" + hash
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(filesByHashBucket).Get([]byte(key))
		if id == nil {
			return nil
		}
		raw := tx.Bucket(filesBucket).Get(id)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &f)
	})
	return f, found, err
}

// UpdateFile loads the record for id, applies fn, and writes it back in
// the same bbolt transaction, giving callers atomic read-modify-write
// without an external lock.
func (s *BoltFileStore) UpdateFile(_ context.Context, id domain.FileID, fn func(*domain.File) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var f domain.File
		raw := tx.Bucket(filesBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("store: file %s not found", id)
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		if err := fn(&f); err != nil {
			return err
		}
		return putFile(tx, f)
	})
}

// ListTransferring returns every File record currently in the
// TRANSFERRING state, consulted on startup so reconnects know which
// transfers to resume offering/accepting.
func (s *BoltFileStore) ListTransferring(_ context.Context) ([]domain.File, error) {
	var out []domain.File
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).ForEach(func(_, raw []byte) error {
			var f domain.File
			if err := json.Unmarshal(raw, &f); err != nil {
				return err
			}
			if f.State == domain.FileTransferring {
				out = append(out, f)
			}
			return nil
		})
	})
	return out, err
}

var _ domain.FileStore = (*BoltFileStore)(nil)
