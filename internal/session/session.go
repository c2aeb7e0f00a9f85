// Package session remembers the last selected merchant across restarts in
// a local BoltDB file, the service's equivalent of client-local storage.
package session

import (
	"fmt"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"
)

const (
	bucketName          = "session"
	keySelectedMerchant = "selected_merchant"
)

type Storage struct {
	db *bolt.DB
}

func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init session bucket: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveSelectedMerchant(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put([]byte(keySelectedMerchant), []byte(strconv.FormatInt(id, 10)))
	})
}

// SelectedMerchant returns the remembered id. The second result is false
// when no value has been stored yet.
func (s *Storage) SelectedMerchant() (int64, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if v := b.Get([]byte(keySelectedMerchant)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}

	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse stored merchant id: %w", err)
	}
	return id, true, nil
}
