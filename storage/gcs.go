package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	gcs "cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// GCS is an implementation of ObjectStore backed by Google Cloud Storage,
// the portal's default backend. Credentials come from the environment
// (workload identity or GOOGLE_APPLICATION_CREDENTIALS); this package never
// handles them directly.
type GCS struct {
	bucket string

	mu     sync.Mutex
	client *gcs.Client
}

// GCS rules, simplified: 3-63 chars, lowercase letters, digits and hyphens,
// starting and ending with a letter or digit.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// ValidateBucketName rejects names that can't be GCS buckets, so a typo'd
// GCS_BUCKET fails at startup rather than on the first upload.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return ErrNotConfigured
	}
	if !bucketNamePattern.MatchString(bucket) {
		return fmt.Errorf("bucket %q: must use 3-63 chars, lowercase letters, numbers, and hyphens; start/end with a letter or number", bucket)
	}
	return nil
}

func NewGCS(bucket string) (*GCS, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	return &GCS{bucket: bucket}, nil
}

func (s *GCS) Put(ctx context.Context, key string, value []byte, contentType string) error {
	if err := s.ensureClient(ctx); err != nil {
		return err
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return s.mapError("put", key, err)
	}
	if err := w.Close(); err != nil {
		return s.mapError("put", key, err)
	}
	return nil
}

func (s *GCS) Get(ctx context.Context, key string) (value []byte, err error) {
	if err := s.ensureClient(ctx); err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, s.mapError("get", key, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.WithFields(log.Fields{
				"op":  "get",
				"key": key,
			}).Warning("Could not close object reader")
		}
	}()
	return io.ReadAll(r)
}

func (s *GCS) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := s.ensureClient(ctx); err != nil {
		return ObjectInfo{}, err
	}
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return ObjectInfo{}, s.mapError("stat", key, err)
	}
	return infoFromAttrs(attrs), nil
}

func (s *GCS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := s.ensureClient(ctx); err != nil {
		return nil, err
	}
	var infos []ObjectInfo
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, s.mapError("list", prefix, err)
		}
		infos = append(infos, infoFromAttrs(attrs))
	}
	return infos, nil
}

func (s *GCS) URL(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

func infoFromAttrs(attrs *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated.UTC(),
	}
}

func (s *GCS) mapError(op, key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return fmt.Errorf("gcs %s %q: %v: %w", op, key, err, ErrUnavailable)
}

func (s *GCS) ensureClient(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs client: %v: %w", err, ErrUnavailable)
	}
	s.client = client
	return nil
}
