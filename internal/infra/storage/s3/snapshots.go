package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"innkeep/internal/app/policies"
)

var ErrObjectNotFound = errors.New("s3: object not found")

// SnapshotStore keeps catalog snapshots in an S3-compatible bucket.
type SnapshotStore struct {
	bucket         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewSnapshotStore configures a MinIO/S3 client for the given bucket.
func NewSnapshotStore(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*SnapshotStore, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{bucket: bucket, client: minioClient, logger: logger}, nil
}

func (s *SnapshotStore) Put(ctx context.Context, key string, payload []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	s.logger.InfoContext(ctx, "s3 snapshot stored", "bucket", s.bucket, "key", key, "bytes", len(payload))
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()
	payload, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err)
	}
	return payload, nil
}

func (s *SnapshotStore) translate(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return ErrObjectNotFound
	}
	return fmt.Errorf("s3: get object: %w", err)
}

func (s *SnapshotStore) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return s.bucketInitErr
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	return key, nil
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.SnapshotStore = (*SnapshotStore)(nil)
