// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/jeranaias/parley/internal/util"
)

const (
	// BoltFileName is the database file inside the data directory.
	BoltFileName = "parley.db"

	// boltOpenTimeout bounds how long Open waits for another process to
	// release the file lock.
	boltOpenTimeout = time.Second
)

var boltBucket = []byte("parley")

// BoltStore keeps all keys in a single bbolt bucket. Every Set is its own
// transaction, committed and fsynced before returning.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) dir/parley.db.
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, util.PrivateDirPerm); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}

	db, err := bolt.Open(filepath.Join(dir, BoltFileName), 0600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bolt bucket")
	}

	return &BoltStore{db: db}, nil
}

// Get implements Store.
func (s *BoltStore) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Values are only valid inside the transaction, so copy out.
		if v := tx.Bucket(boltBucket).Get([]byte(key)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, s.wrap(err, "read", key)
	}
	return value, found, nil
}

// Set implements Store.
func (s *BoltStore) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	return s.wrap(err, "write", key)
}

// Remove implements Store.
func (s *BoltStore) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	return s.wrap(err, "remove", key)
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) wrap(err error, op, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return errors.Wrapf(err, "%s %s", op, key)
}
