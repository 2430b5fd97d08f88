package documents

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seed(t *testing.T, repo *MemoryRepo, docs ...Document) {
	t.Helper()
	for _, doc := range docs {
		if err := repo.Create(context.Background(), doc); err != nil {
			t.Fatalf("Create %s: %v", doc.ID, err)
		}
	}
}

func TestMemoryClaimPendingFilters(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	longAgo := base.Add(-time.Hour)
	recent := time.Now().UTC()
	meta := &Metadata{AccountID: "acc-1"}

	seed(t, repo,
		Document{ID: "pending-new", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base.Add(3 * time.Minute)},
		Document{ID: "pending-old", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base},
		Document{ID: "no-meta", UserID: "u", Enabled: true, CreatedAt: base.Add(-time.Minute)},
		Document{ID: "disabled", UserID: "u", Metadata: meta, Enabled: false, CreatedAt: base},
		Document{ID: "done", UserID: "u", Metadata: meta, Enabled: true, Status: StatusCompleted, CreatedAt: base},
		Document{ID: "stale", UserID: "u", Metadata: meta, Enabled: true, Status: StatusProcessing, ClaimedAt: &longAgo, CreatedAt: base.Add(time.Minute)},
		Document{ID: "busy", UserID: "u", Metadata: meta, Enabled: true, Status: StatusProcessing, ClaimedAt: &recent, CreatedAt: base.Add(time.Minute)},
	)

	claims, err := repo.ClaimPending(context.Background(), 10, base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	var ids []string
	for _, c := range claims {
		ids = append(ids, c.ID)
		if c.Status != StatusProcessing || c.ClaimedAt == nil {
			t.Fatalf("expected %s to be processing with claimed_at, got %+v", c.ID, c)
		}
		if c.Reclaimed != (c.ID == "stale") {
			t.Fatalf("unexpected reclaim flag on %s", c.ID)
		}
	}
	want := []string{"pending-old", "stale", "pending-new"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	again, err := repo.ClaimPending(context.Background(), 10, base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("second ClaimPending: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected claimed rows to be skipped, got %d", len(again))
	}
}

func TestMemoryClaimPendingLimit(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().UTC()
	meta := &Metadata{AccountID: "acc-1"}
	seed(t, repo,
		Document{ID: "a", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base},
		Document{ID: "b", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base.Add(time.Second)},
	)
	claims, err := repo.ClaimPending(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if len(claims) != 1 || claims[0].ID != "a" {
		t.Fatalf("expected only the oldest document, got %+v", claims)
	}
}

func TestMemoryReleasedDocumentQueuesBehindNewerWork(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	meta := &Metadata{AccountID: "acc-1"}
	seed(t, repo,
		Document{ID: "old", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base},
		Document{ID: "new", UserID: "u", Metadata: meta, Enabled: true, CreatedAt: base.Add(time.Minute)},
	)

	first, err := repo.ClaimPending(ctx, 1, base)
	if err != nil || len(first) != 1 || first[0].ID != "old" {
		t.Fatalf("expected the oldest document first, got %+v %v", first, err)
	}
	if err := repo.Release(ctx, "old"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second, err := repo.ClaimPending(ctx, 1, base)
	if err != nil || len(second) != 1 || second[0].ID != "new" {
		t.Fatalf("expected the never-attempted document next, got %+v %v", second, err)
	}
	third, err := repo.ClaimPending(ctx, 1, base)
	if err != nil || len(third) != 1 || third[0].ID != "old" {
		t.Fatalf("expected the released document last, got %+v %v", third, err)
	}
}

func TestMemoryReleaseAndRetry(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	seed(t, repo, Document{ID: "doc-1", UserID: "u", Metadata: &Metadata{AccountID: "acc"}, Enabled: true, CreatedAt: time.Now()})

	if err := repo.Release(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected release of an unclaimed document to fail, got %v", err)
	}
	if _, err := repo.ClaimPending(ctx, 1, time.Now()); err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if err := repo.Release(ctx, "doc-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	doc, _ := repo.Get(ctx, "doc-1")
	if doc.Status != StatusPending || doc.ClaimedAt != nil {
		t.Fatalf("expected released document to be pending, got %+v", doc)
	}

	if _, err := repo.Retry(ctx, "u", "doc-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for pending document, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "doc-1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, err := repo.Retry(ctx, "someone-else", "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	doc, err := repo.Retry(ctx, "u", "doc-1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if doc.Status != StatusPending {
		t.Fatalf("expected pending after retry, got %s", doc.Status)
	}
}

func TestMemoryMarkCompletedStoresCopy(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	seed(t, repo, Document{ID: "doc-1", UserID: "u", Metadata: &Metadata{AccountID: "acc"}, Enabled: true, CreatedAt: time.Now()})

	meta := Metadata{AccountID: "acc"}.WithLinkage(StorageLinkage{ResourceID: "res-1"})
	if err := repo.MarkCompleted(ctx, "doc-1", meta); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	meta.ZohoData.ResourceID = "mutated"

	doc, err := repo.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != StatusCompleted || doc.Metadata.ZohoData.ResourceID != "res-1" {
		t.Fatalf("unexpected stored document %+v", doc)
	}
}
