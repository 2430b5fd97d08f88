package filer

import (
	"context"
	"errors"
	"io"
	"testing"

	"filing-backend/internal/shared/resilience"
	"filing-backend/internal/workdrive"
)

type fakeUploader struct {
	calls    int
	override bool
	body     string
	out      workdrive.UploadedFile
	err      error
}

func (f *fakeUploader) Upload(ctx context.Context, parentID, fileName, contentType string, content io.Reader, override bool) (workdrive.UploadedFile, error) {
	f.calls++
	f.override = override
	data, _ := io.ReadAll(content)
	f.body = string(data)
	return f.out, f.err
}

func TestUploadReturnsProviderAttributes(t *testing.T) {
	up := &fakeUploader{out: workdrive.UploadedFile{ResourceID: "res-1", Permalink: "https://wd/res-1"}}
	f := New(up, nil, resilience.Policy{})

	res, err := f.Upload(context.Background(), "folder-1", []byte("pdf"), "W-2.pdf", "application/pdf", true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := Result{ParentID: "folder-1", ResourceID: "res-1", Permalink: "https://wd/res-1", FileName: "W-2.pdf"}
	if res != want {
		t.Fatalf("Upload() = %+v, want %+v", res, want)
	}
	if !up.override || up.body != "pdf" {
		t.Fatalf("unexpected upload call override=%v body=%q", up.override, up.body)
	}
}

func TestUploadFailureIsUploadErrorAndNotRetried(t *testing.T) {
	boom := errors.New("503 from provider")
	up := &fakeUploader{err: boom}
	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3})
	f := New(up, exec, resilience.Policy{Retry: true})

	_, err := f.Upload(context.Background(), "folder-1", []byte("x"), "a.pdf", "", true)
	var upErr *UploadError
	if !errors.As(err, &upErr) || !errors.Is(err, boom) {
		t.Fatalf("expected UploadError wrapping cause, got %v", err)
	}
	if upErr.FolderID != "folder-1" || upErr.FileName != "a.pdf" {
		t.Fatalf("unexpected error fields %+v", upErr)
	}
	if up.calls != 1 {
		t.Fatalf("expected a single upload attempt, got %d", up.calls)
	}
}

func TestUploadRequiresFolder(t *testing.T) {
	up := &fakeUploader{}
	_, err := New(up, nil, resilience.Policy{}).Upload(context.Background(), "", []byte("x"), "a.pdf", "", true)
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("expected no provider call")
	}
}
