package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filing-backend/internal/shared/storage/object"
)

// Store implements object.Store on the local filesystem.
type Store struct {
	baseDir  string
	maxBytes int64
}

// New creates a local object store rooted at baseDir.
func New(baseDir string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = object.DefaultMaxBytes
	}
	return &Store{baseDir: baseDir, maxBytes: maxBytes}
}

// Fetch reads the referenced file into memory.
func (s *Store) Fetch(ctx context.Context, ref string) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}

	parsed, err := object.ParseRef(ref)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}
	if parsed.Scheme != "" && parsed.Scheme != "local" {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: errors.New("reference is not a local object")}
	}

	fullPath, err := s.resolve(parsed.Key)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}
	defer f.Close()

	body, err := object.ReadAllLimited(f, s.maxBytes)
	if err != nil {
		return object.Object{}, &object.RetrievalError{Ref: ref, Err: err}
	}

	name := object.BaseName(parsed.Key)
	return object.Object{
		FileName:      name,
		ContentType:   object.ContentType(name, body),
		ContentLength: int64(len(body)),
		Body:          body,
	}, nil
}

// Put writes r to disk under key and returns a local:// reference.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return "", 0, fmt.Errorf("write body: %w", err)
	}
	_ = contentType
	return "local://" + filepath.ToSlash(filepath.Clean(key)), written, nil
}

func (s *Store) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ object.Store = (*Store)(nil)
