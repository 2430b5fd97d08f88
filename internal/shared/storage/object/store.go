package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"filing-backend/internal/shared/util"
)

// DefaultMaxBytes bounds how much of an object Fetch will buffer.
const DefaultMaxBytes int64 = 25 << 20

// ErrTooLarge is returned when an object exceeds the configured fetch limit.
var ErrTooLarge = errors.New("object exceeds size limit")

// Object is a fully buffered stored object.
type Object struct {
	FileName      string
	ContentType   string
	ContentLength int64
	Body          []byte
}

// Fetcher retrieves stored objects by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (Object, error)
}

// Store is the contract shared by all object store backends.
type Store interface {
	Fetcher
	// Put stores r under key and returns a reference that Fetch accepts.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (ref string, size int64, err error)
}

// Presigner issues short-lived direct-upload URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (string, error)
}

// RetrievalError reports that an object could not be fetched.
type RetrievalError struct {
	Ref string
	Err error
}

func (e *RetrievalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("retrieve object %s", e.Ref)
	}
	return fmt.Sprintf("retrieve object %s: %v", e.Ref, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Ref is a parsed object reference.
type Ref struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseRef accepts "s3://bucket/key", "local://key", an http(s) URL whose path
// holds the key, or a bare key.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, errors.New("empty object reference")
	}
	if !strings.Contains(raw, "://") {
		return Ref{Key: strings.TrimLeft(raw, "/")}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("parse object reference: %w", err)
	}
	key := strings.TrimLeft(u.Path, "/")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	switch strings.ToLower(u.Scheme) {
	case "s3", "minio":
		return Ref{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	case "local":
		return Ref{Scheme: "local", Key: strings.TrimLeft(u.Host+"/"+key, "/")}, nil
	case "http", "https":
		return Ref{Scheme: "http", Bucket: u.Host, Key: key}, nil
	default:
		return Ref{}, fmt.Errorf("unsupported object reference scheme %q", u.Scheme)
	}
}

// KeyForBucket resolves the object key inside bucket, stripping a leading
// bucket segment from path-style URLs.
func (r Ref) KeyForBucket(bucket string) string {
	if r.Scheme == "http" && bucket != "" {
		if rest, ok := strings.CutPrefix(r.Key, bucket+"/"); ok {
			return rest
		}
	}
	return r.Key
}

// DocumentKey builds the storage key for an uploaded document.
func DocumentKey(prefix, userID, documentID, fileName string) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(strings.Trim(prefix, "/"), util.HashUserKey(userID), documentID, sanitized), nil
}

// ContentType picks a MIME type from the file extension, falling back to sniffing.
func ContentType(fileName string, head []byte) string {
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return strings.TrimSpace(strings.Split(byExt, ";")[0])
		}
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return strings.Split(http.DetectContentType(head), ";")[0]
}

// ReadAllLimited buffers r, failing with ErrTooLarge past max bytes.
func ReadAllLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

// BaseName returns the last path segment of key.
func BaseName(key string) string {
	return path.Base(strings.ReplaceAll(key, "\\", "/"))
}
