// Package persistence keeps bot session state in a bbolt file, optionally mirrored to Yandex Disk.
package persistence

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketConversations = "Conversations"

// BoltStore stores conversation states keyed by user ID
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the state file at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open bbolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketConversations))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Put saves the state of a user
func (s *BoltStore) Put(userID int64, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketConversations)).Put(key(userID), value)
	})
}

// Delete removes the state of a user
func (s *BoltStore) Delete(userID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketConversations)).Delete(key(userID))
	})
}

// ForEach calls fn for every stored state
func (s *BoltStore) ForEach(fn func(userID int64, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketConversations)).ForEach(func(k, v []byte) error {
			userID, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid state key %q: %w", k, err)
			}
			return fn(userID, v)
		})
	})
}

// Snapshot returns a consistent copy of the whole database file
func (s *BoltStore) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	err := s.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(&buf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	return buf.Bytes(), nil
}

// Close closes the state file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func key(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}
