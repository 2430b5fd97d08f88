package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of DocumentsRepo.
type MemoryRepo struct {
	mu       sync.RWMutex
	data     map[string]Document  // documentID -> document
	attempts map[string]time.Time // documentID -> last claim
	now      func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data:     make(map[string]Document),
		attempts: make(map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = cloneDocument(doc)
	return nil
}

// Get returns any document by id regardless of owner.
func (r *MemoryRepo) Get(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// GetByID returns a document by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := r.Get(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID || doc.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns a user's documents, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var docs []Document
	for _, doc := range r.data {
		if doc.UserID == userID && doc.DeletedAt == nil {
			docs = append(docs, cloneDocument(doc))
		}
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := offset + limit
	if end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end], nil
}

// SetEnabled toggles whether the pipeline may pick the document up.
func (r *MemoryRepo) SetEnabled(ctx context.Context, userID, documentID string, enabled bool) (Document, error) {
	return r.update(ctx, documentID, func(doc *Document) error {
		if doc.UserID != userID || doc.DeletedAt != nil {
			return ErrNotFound
		}
		doc.Enabled = enabled
		return nil
	})
}

// Retry moves a failed document back to pending.
func (r *MemoryRepo) Retry(ctx context.Context, userID, documentID string) (Document, error) {
	return r.update(ctx, documentID, func(doc *Document) error {
		if doc.UserID != userID || doc.DeletedAt != nil {
			return ErrNotFound
		}
		if doc.Status != StatusFailed {
			return ErrConflict
		}
		doc.Status = StatusPending
		doc.ClaimedAt = nil
		return nil
	})
}

// ClaimPending implements DocumentsRepo with the same filter as PGRepo.
func (r *MemoryRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []Document
	for _, doc := range r.data {
		if !doc.Enabled || doc.DeletedAt != nil || doc.Metadata == nil {
			continue
		}
		stale := doc.Status == StatusProcessing && doc.ClaimedAt != nil && doc.ClaimedAt.Before(staleBefore)
		if doc.Status == StatusPending || stale {
			candidates = append(candidates, doc)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		qi, qj := r.queuedAt(candidates[i]), r.queuedAt(candidates[j])
		if qi.Equal(qj) {
			return candidates[i].ID < candidates[j].ID
		}
		return qi.Before(qj)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	now := r.now()
	out := make([]Claim, 0, len(candidates))
	for _, doc := range candidates {
		reclaimed := doc.Status == StatusProcessing
		doc.Status = StatusProcessing
		claimed := now
		doc.ClaimedAt = &claimed
		doc.UpdatedAt = now
		r.data[doc.ID] = doc
		r.attempts[doc.ID] = now
		out = append(out, Claim{Document: cloneDocument(doc), Reclaimed: reclaimed})
	}
	return out, nil
}

// queuedAt is the last claim time, or creation time when never claimed.
func (r *MemoryRepo) queuedAt(doc Document) time.Time {
	if t, ok := r.attempts[doc.ID]; ok {
		return t
	}
	return doc.CreatedAt
}

// Release implements DocumentsRepo.
func (r *MemoryRepo) Release(ctx context.Context, documentID string) error {
	_, err := r.update(ctx, documentID, func(doc *Document) error {
		if doc.Status != StatusProcessing {
			return ErrNotFound
		}
		doc.Status = StatusPending
		doc.ClaimedAt = nil
		return nil
	})
	return err
}

// MarkCompleted implements DocumentsRepo.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, documentID string, metadata Metadata) error {
	_, err := r.update(ctx, documentID, func(doc *Document) error {
		doc.Metadata = metadata.Clone()
		doc.Status = StatusCompleted
		doc.ClaimedAt = nil
		return nil
	})
	return err
}

// MarkFailed implements DocumentsRepo.
func (r *MemoryRepo) MarkFailed(ctx context.Context, documentID string) error {
	_, err := r.update(ctx, documentID, func(doc *Document) error {
		doc.Status = StatusFailed
		doc.ClaimedAt = nil
		return nil
	})
	return err
}

func (r *MemoryRepo) update(ctx context.Context, documentID string, fn func(*Document) error) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	if err := fn(&doc); err != nil {
		return Document{}, err
	}
	doc.UpdatedAt = r.now()
	r.data[documentID] = doc
	return cloneDocument(doc), nil
}

func cloneDocument(doc Document) Document {
	out := doc
	out.Metadata = doc.Metadata.Clone()
	if doc.ClaimedAt != nil {
		t := *doc.ClaimedAt
		out.ClaimedAt = &t
	}
	if doc.DeletedAt != nil {
		t := *doc.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
