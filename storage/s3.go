package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"
)

// S3 is an implementation of ObjectStore backed by AWS S3, for deployments
// outside Google Cloud.
type S3 struct {
	profile string
	region  string
	bucket  string

	mu     sync.Mutex
	client *s3.S3
}

func NewS3(profile, region, bucket string) (*S3, error) {
	if bucket == "" {
		return nil, ErrNotConfigured
	}
	return &S3{
		profile: profile,
		region:  region,
		bucket:  bucket,
	}, nil
}

func (s *S3) Get(ctx context.Context, key string) (value []byte, err error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.mapError("get", key, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			log.WithFields(log.Fields{
				"op":  "get",
				"key": key,
			}).Warning("Could not close response body")
		}
	}()
	return io.ReadAll(output.Body)
}

func (s *S3) Put(ctx context.Context, key string, value []byte, contentType string) (err error) {
	if err := s.ensureClient(); err != nil {
		return err
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return s.mapError("put", key, err)
	}
	return nil
}

func (s *S3) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := s.ensureClient(); err != nil {
		return ObjectInfo{}, err
	}
	output, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, s.mapError("stat", key, err)
	}
	info := ObjectInfo{
		Key:         key,
		Size:        aws.Int64Value(output.ContentLength),
		ContentType: aws.StringValue(output.ContentType),
	}
	if output.LastModified != nil {
		info.Updated = output.LastModified.UTC()
	}
	return info, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	var infos []ObjectInfo
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			info := ObjectInfo{
				Key:  aws.StringValue(object.Key),
				Size: aws.Int64Value(object.Size),
			}
			if object.LastModified != nil {
				info.Updated = object.LastModified.UTC()
			}
			infos = append(infos, info)
		}
		return true
	})
	if err != nil {
		return nil, s.mapError("list", prefix, err)
	}
	return infos, nil
}

func (s *S3) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *S3) mapError(op, key string, err error) error {
	if rfErr, ok := err.(awserr.RequestFailure); ok {
		if rfErr.StatusCode() == http.StatusNotFound {
			return fmt.Errorf("%q: %w", key, ErrNotFound)
		}
	}
	return fmt.Errorf("s3 %s %q: %v: %w", op, key, err, ErrUnavailable)
}

func (s *S3) ensureClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(s.region),
		Credentials: credentials.NewSharedCredentials("", s.profile),
	})
	if err != nil {
		return fmt.Errorf("s3 session: %v: %w", err, ErrUnavailable)
	}
	s.client = s3.New(sess)
	return nil
}
