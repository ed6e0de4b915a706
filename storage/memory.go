package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is an ObjectStore implementation powered by a map, to be
// used for testing or for running the portal in demo mode without a bucket.
type InMemoryStore struct {
	sync.Mutex
	bucket string
	m      map[string]memObject
}

type memObject struct {
	value []byte
	info  ObjectInfo
}

// NewInMemoryStore returns an empty store. The bucket name is only used to
// form storage paths, so tests can assert on gs://-style URLs.
func NewInMemoryStore(bucket string) *InMemoryStore {
	return &InMemoryStore{
		bucket: bucket,
		m:      make(map[string]memObject),
	}
}

func (s *InMemoryStore) Put(_ context.Context, key string, value []byte, contentType string) error {
	s.Lock()
	s.m[key] = memObject{
		value: dup(value),
		info: ObjectInfo{
			Key:         key,
			Size:        int64(len(value)),
			ContentType: contentType,
			Updated:     time.Now().UTC(),
		},
	}
	s.Unlock()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (value []byte, err error) {
	s.Lock()
	o, ok := s.m[key]
	s.Unlock()
	if !ok {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	if o.value == nil {
		return []byte{}, nil
	}
	return dup(o.value), nil
}

func (s *InMemoryStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	s.Lock()
	o, ok := s.m[key]
	s.Unlock()
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	return o.info, nil
}

func (s *InMemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.Lock()
	defer s.Unlock()
	var infos []ObjectInfo
	for key, o := range s.m {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, o.info)
		}
	}
	return infos, nil
}

func (s *InMemoryStore) URL(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
