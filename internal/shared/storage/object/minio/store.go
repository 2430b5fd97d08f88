package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"filing-backend/internal/shared/storage/object"
)

// Options configures the MinIO store.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
	MaxBytes  int64
}

// Store implements object.Store and object.Presigner on any S3-compatible
// endpoint reachable through minio-go.
type Store struct {
	api      *minio.Client
	bucket   string
	prefix   string
	maxBytes int64
}

// New creates a MinIO-backed store.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = object.DefaultMaxBytes
	}
	return &Store{
		api:      client,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		maxBytes: maxBytes,
	}, nil
}

// Fetch downloads the referenced object into memory.
func (s *Store) Fetch(ctx context.Context, ref string) (object.Object, error) {
	bucket, key, err := s.locate(ref)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}

	obj, err := s.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: fmt.Errorf("minio get object bucket=%s key=%s: %w", bucket, key, err)}
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: fmt.Errorf("minio stat bucket=%s key=%s: %w", bucket, key, err)}
	}
	if info.Size > s.maxBytes {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: object.ErrTooLarge}
	}

	body, err := object.ReadAllLimited(obj, s.maxBytes)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: fmt.Errorf("read body: %w", err)}
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = object.ContentType(key, body)
	}
	return object.Object{
		FileName:      object.BaseName(key),
		ContentType:   contentType,
		ContentLength: int64(len(body)),
		Body:          body,
	}, nil
}

// Put streams r into the bucket and returns an s3:// reference.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, int64, error) {
	objectKey := s.withPrefix(key)
	info, err := s.api.PutObject(ctx, s.bucket, objectKey, r, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", 0, fmt.Errorf("minio put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return "s3://" + s.bucket + "/" + objectKey, info.Size, nil
}

// PresignPut returns a presigned PUT URL for key.
func (s *Store) PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	u, err := s.api.PresignedPutObject(ctx, s.bucket, s.withPrefix(key), expires)
	if err != nil {
		return "", fmt.Errorf("minio presign put key=%s: %w", key, err)
	}
	_ = contentType
	return u.String(), nil
}

func (s *Store) locate(raw string) (string, string, error) {
	ref, err := object.ParseRef(raw)
	if err != nil {
		return "", "", err
	}
	switch ref.Scheme {
	case "s3":
		bucket := ref.Bucket
		if bucket == "" {
			bucket = s.bucket
		}
		return bucket, ref.Key, nil
	case "http":
		return s.bucket, ref.KeyForBucket(s.bucket), nil
	case "":
		return s.bucket, s.withPrefix(ref.Key), nil
	default:
		return "", "", errors.New("reference is not a minio object")
	}
}

func (s *Store) withPrefix(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

var (
	_ object.Store     = (*Store)(nil)
	_ object.Presigner = (*Store)(nil)
)
