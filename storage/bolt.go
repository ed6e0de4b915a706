package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

// BoltStore is an implementation of ObjectStore whose backend is a Bolt
// database, for development without any cloud bucket. Object bytes and
// object descriptors live in separate Bolt buckets keyed by object key.
type BoltStore struct {
	db   *bolt.DB
	name string
}

var (
	objectsBucket = []byte("objects")
	attrsBucket   = []byte("attrs")
)

func NewBoltStore(db *bolt.DB, name string) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{objectsBucket, attrsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("could not ensure bucket %q exists: %w", b, err)
			}
		}
		return nil
	})
	return &BoltStore{db: db, name: name}, err
}

func (s *BoltStore) Put(_ context.Context, key string, value []byte, contentType string) error {
	attrs, err := json.Marshal(ObjectInfo{
		Key:         key,
		Size:        int64(len(value)),
		ContentType: contentType,
		Updated:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(objectsBucket).Put([]byte(key), value); err != nil {
			return fmt.Errorf("could not put %.40q: %w", key, err)
		}
		if err := tx.Bucket(attrsBucket).Put([]byte(key), attrs); err != nil {
			return fmt.Errorf("could not put attrs for %.40q: %w", key, err)
		}
		return nil
	})
}

func (s *BoltStore) Get(_ context.Context, key string) (value []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%.40q: %w", key, ErrNotFound)
		}
		value = dup(v)
		return nil
	})
	return value, err
}

func (s *BoltStore) Stat(_ context.Context, key string) (info ObjectInfo, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(attrsBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%.40q: %w", key, ErrNotFound)
		}
		return json.Unmarshal(v, &info)
	})
	return info, err
}

func (s *BoltStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(attrsBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var info ObjectInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("corrupt attrs for %.40q: %w", k, err)
			}
			infos = append(infos, info)
		}
		return nil
	})
	return infos, err
}

func (s *BoltStore) URL(key string) string {
	return fmt.Sprintf("bolt://%s/%s", s.name, key)
}
