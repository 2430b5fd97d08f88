package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"filing-backend/internal/shared/storage/object"
)

// Options configures the S3 store.
type Options struct {
	Region   string
	Bucket   string
	Prefix   string
	KMSKeyID string
	MaxBytes int64
}

// Store implements object.Store and object.Presigner on Amazon S3.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	prefix   string
	kmsKeyID string
	maxBytes int64
}

// New creates an S3-backed object store using the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), opts)
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client *s3.Client, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = object.DefaultMaxBytes
	}
	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   opts.Bucket,
		prefix:   normalizePrefix(opts.Prefix),
		kmsKeyID: strings.TrimSpace(opts.KMSKeyID),
		maxBytes: maxBytes,
	}, nil
}

// Fetch downloads and buffers the referenced object.
func (s *Store) Fetch(ctx context.Context, ref string) (object.Object, error) {
	bucket, objectKey, err := s.locate(ref)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return object.Object{}, &object.RetrievalError{
			Ref: ref,
			Err: fmt.Errorf("s3 get object bucket=%s key=%s: %w", bucket, objectKey, err),
		}
	}
	defer out.Body.Close()

	body, err := object.ReadAllLimited(out.Body, s.maxBytes)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: fmt.Errorf("read body: %w", err)}
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = object.ContentType(objectKey, body)
	}
	return object.Object{
		FileName:      object.BaseName(objectKey),
		ContentType:   contentType,
		ContentLength: int64(len(body)),
		Body:          body,
	}, nil
}

// Put uploads r under key (prefix applied) and returns an s3:// reference.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	objectKey := applyPrefix(s.prefix, key)
	counter := &countingReader{r: r}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        counter,
		ContentType: aws.String(contentType),
	}
	s.applyEncryption(input)

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", 0, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return "s3://" + s.bucket + "/" + objectKey, counter.n, nil
}

// PresignPut returns a URL the browser can PUT the file to directly.
func (s *Store) PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (string, error) {
	out, err := s.presign.PresignPutObject(ctx, presignInput(s.bucket, applyPrefix(s.prefix, key), contentType), func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign put key=%s: %w", key, err)
	}
	return out.URL, nil
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
		return s.bucket, applyPrefix(s.prefix, ref.Key), nil
	default:
		return "", "", errors.New("reference is not an s3 object")
	}
}

func (s *Store) applyEncryption(input *s3.PutObjectInput) {
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
		return
	}
	input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
}

// presignInput leaves ContentLength unset so the browser's own length is not
// part of the signature.
func presignInput(bucket, key, contentType string) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	return input
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var (
	_ object.Store     = (*Store)(nil)
	_ object.Presigner = (*Store)(nil)
)
