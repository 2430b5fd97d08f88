package uploadlogs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	logs []Log
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: func() time.Time { return time.Now().UTC() }}
}

// Create implements Repo.
func (r *MemoryRepo) Create(ctx context.Context, log Log) (Log, error) {
	if err := ctx.Err(); err != nil {
		return Log{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log = withDefaults(log, r.now())
	r.logs = append(r.logs, log)
	return log, nil
}

// MarkCompleted implements Repo.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.update(ctx, id, func(l *Log) {
		l.Status = StatusCompleted
		l.ErrorMessage = nil
	})
}

// MarkFailed implements Repo.
func (r *MemoryRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.update(ctx, id, func(l *Log) {
		l.Status = StatusFailed
		l.ErrorMessage = &reason
	})
}

// AbandonPending implements Repo.
func (r *MemoryRepo) AbandonPending(ctx context.Context, documentID, reason string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.logs {
		if r.logs[i].DocumentID == documentID && r.logs[i].Status == StatusPending {
			msg := reason
			r.logs[i].Status = StatusFailed
			r.logs[i].ErrorMessage = &msg
			r.logs[i].UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

// ListByDocument implements Repo.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].DocumentID == documentID {
			out = append(out, r.logs[i])
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// All returns every log in insertion order.
func (r *MemoryRepo) All() []Log {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Log(nil), r.logs...)
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*Log)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.logs {
		if r.logs[i].ID == id {
			fn(&r.logs[i])
			r.logs[i].UpdatedAt = r.now()
			return nil
		}
	}
	return ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
