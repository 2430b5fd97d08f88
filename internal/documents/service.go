package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"filing-backend/internal/shared/storage/object"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/shared/util"
	"filing-backend/internal/uploadlogs"
)

// KeyPrefix is the object-store folder documents are written under.
const KeyPrefix = "documents"

// LogLister reads a document's filing attempts.
type LogLister interface {
	ListByDocument(ctx context.Context, documentID string) ([]uploadlogs.Log, error)
}

// Notifier nudges the filing worker that new work exists.
type Notifier interface {
	Notify(ctx context.Context, reason string) error
}

// Service contains business logic for documents.
type Service struct {
	Store    object.Store
	Repo     DocumentsRepo
	LogRepo  LogLister
	Notifier Notifier
	MaxBytes int64
	Now      func() time.Time
}

// NewUpload is a file the caller already streamed to the object store.
type NewUpload struct {
	Key         string
	FileName    string
	ContentType string
	SizeBytes   int64
	AccountID   string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload saves the file to object storage and records a pending document.
func (s *Service) Upload(ctx context.Context, user UserContext, accountID, fileName, contentType string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	accountID = strings.TrimSpace(accountID)
	if user.ID == "" || fileName == "" || accountID == "" {
		return Document{}, fmt.Errorf("%w: fileName and accountId are required", ErrInvalidInput)
	}

	docID := uuid.NewString()
	key, err := object.DocumentKey(KeyPrefix, user.ID, docID, fileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = object.DefaultMaxBytes
	}
	body, err := object.ReadAllLimited(r, maxBytes)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(body) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = object.ContentType(fileName, body)
	}

	ref, size, err := s.Store.Put(ctx, key, contentType, bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}

	return s.create(ctx, docID, user, accountID, ref, FileRef{
		Key:         key,
		Name:        fileName,
		ContentType: contentType,
		Size:        size,
	})
}

// CreateFromUpload registers a document the browser PUT to a presigned URL.
func (s *Service) CreateFromUpload(ctx context.Context, user UserContext, in NewUpload) (Document, error) {
	in.Key = strings.Trim(strings.TrimSpace(in.Key), "/")
	in.FileName = strings.TrimSpace(in.FileName)
	in.AccountID = strings.TrimSpace(in.AccountID)
	if user.ID == "" || in.Key == "" || in.FileName == "" || in.AccountID == "" {
		return Document{}, fmt.Errorf("%w: key, fileName and accountId are required", ErrInvalidInput)
	}
	if !OwnsKey(user.ID, in.Key) {
		return Document{}, fmt.Errorf("%w: key does not belong to caller", ErrInvalidInput)
	}
	if in.SizeBytes <= 0 {
		return Document{}, fmt.Errorf("%w: sizeBytes must be positive", ErrInvalidInput)
	}

	// Keys are <prefix>/<user hash>/<document id>/<file>; reuse the id the
	// presign step minted.
	docID := path.Base(path.Dir(in.Key))
	if _, err := uuid.Parse(docID); err != nil {
		docID = uuid.NewString()
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = object.ContentType(in.FileName, nil)
	}

	return s.create(ctx, docID, user, in.AccountID, in.Key, FileRef{
		Key:         in.Key,
		Name:        in.FileName,
		ContentType: contentType,
		Size:        in.SizeBytes,
	})
}

// OwnsKey reports whether key sits under userID's hashed folder.
func OwnsKey(userID, key string) bool {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 4 || parts[0] != KeyPrefix {
		return false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	return parts[1] == util.HashUserKey(userID)
}

func (s *Service) create(ctx context.Context, docID string, user UserContext, accountID, fileURL string, file FileRef) (Document, error) {
	now := s.now()
	u := user
	f := file
	doc := Document{
		ID:          docID,
		UserID:      user.ID,
		FileName:    file.Name,
		FileURL:     fileURL,
		ContentType: file.ContentType,
		SizeBytes:   file.Size,
		Metadata: &Metadata{
			User:      &u,
			AccountID: accountID,
			File:      &f,
		},
		Status:    StatusPending,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}

	telemetry.Info("documents.created", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"account_id":  accountID,
		"size_bytes":  doc.SizeBytes,
	})
	s.notify(ctx, "document.created")
	return doc, nil
}

func (s *Service) notify(ctx context.Context, reason string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, reason); err != nil {
		telemetry.Warn("documents.notify_failed", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
	}
}

// Get returns one of the caller's documents.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the caller's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Logs returns the filing attempts of one of the caller's documents.
func (s *Service) Logs(ctx context.Context, userID, documentID string) ([]uploadlogs.Log, error) {
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	if s.LogRepo == nil {
		return []uploadlogs.Log{}, nil
	}
	return s.LogRepo.ListByDocument(ctx, documentID)
}

// Retry queues a failed document for another attempt.
func (s *Service) Retry(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	doc, err := s.Repo.Retry(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	s.notify(ctx, "document.retry")
	return doc, nil
}

// SetEnabled includes or excludes a document from filing.
func (s *Service) SetEnabled(ctx context.Context, userID, documentID string, enabled bool) (Document, error) {
	if userID == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	doc, err := s.Repo.SetEnabled(ctx, userID, documentID, enabled)
	if err != nil {
		return Document{}, err
	}
	if enabled && doc.Status == StatusPending {
		s.notify(ctx, "document.enabled")
	}
	return doc, nil
}
