// Package nvm provides the persistent, reset-surviving storage region the
// boot record and event log back themselves with. On the vehicle this is
// a battery-backed SRAM region the bootloader never clears; on the ground
// harness it is a single-file go.etcd.io/bbolt store that survives
// process restarts, which is the property that actually matters for
// exercising "survives a reset" behavior end to end.
package nvm

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/TheusHen/OpenFSW/status"
)

// Store is an embedded key/value persistent region, one bucket per
// logical region (boot record, event log, ...).
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, status.Wrap(err, status.HardwareError, "nvm", "open")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value under key within bucket, creating the bucket if
// necessary.
func (s *Store) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return status.Wrap(err, status.HardwareError, "nvm", "put")
		}
		return b.Put([]byte(key), value)
	})
}

// Get reads the value stored under key within bucket. Returns
// status.ErrNVMKeyNotFound if the bucket or key is absent.
func (s *Store) Get(bucket, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return status.ErrNVMKeyNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return status.ErrNVMKeyNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes key from bucket. It is not an error if the key is
// already absent.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// ForEach iterates every key/value pair in bucket in key order. It is a
// no-op if the bucket does not exist.
func (s *Store) ForEach(bucket string, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}
