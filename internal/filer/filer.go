// Package filer uploads fetched documents into a resolved WorkDrive folder.
package filer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"filing-backend/internal/shared/resilience"
	"filing-backend/internal/workdrive"
)

// Uploader is the storage provider's upload call.
type Uploader interface {
	Upload(ctx context.Context, parentID, fileName, contentType string, content io.Reader, override bool) (workdrive.UploadedFile, error)
}

// Result holds the provider-assigned attributes of the stored file.
type Result struct {
	ParentID   string
	ResourceID string
	Permalink  string
	FileName   string
}

// UploadError wraps a rejected or failed upload.
type UploadError struct {
	FolderID string
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s to folder %s: %v", e.FileName, e.FolderID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Filer uploads under a single-shot call policy.
type Filer struct {
	uploader Uploader
	exec     *resilience.Executor
	policy   resilience.Policy
}

// New builds a Filer. Uploads are never retried; policy.Retry is ignored.
func New(uploader Uploader, exec *resilience.Executor, policy resilience.Policy) *Filer {
	policy.Retry = false
	return &Filer{uploader: uploader, exec: exec, policy: policy}
}

// Upload stores body as fileName in folderID. An empty ResourceID in the
// result means the provider accepted the call but reported no file.
func (f *Filer) Upload(ctx context.Context, folderID string, body []byte, fileName, contentType string, override bool) (Result, error) {
	folderID = strings.TrimSpace(folderID)
	fileName = strings.TrimSpace(fileName)
	if folderID == "" || fileName == "" {
		return Result{}, &UploadError{FolderID: folderID, FileName: fileName, Err: fmt.Errorf("folder id and file name are required")}
	}

	var out workdrive.UploadedFile
	err := f.exec.Do(ctx, "workdrive.upload", f.policy, func(ctx context.Context) error {
		var err error
		out, err = f.uploader.Upload(ctx, folderID, fileName, contentType, bytes.NewReader(body), override)
		return err
	})
	if err != nil {
		return Result{}, &UploadError{FolderID: folderID, FileName: fileName, Err: err}
	}

	res := Result{
		ParentID:   out.ParentID,
		ResourceID: out.ResourceID,
		Permalink:  out.Permalink,
		FileName:   out.FileName,
	}
	if res.ParentID == "" {
		res.ParentID = folderID
	}
	if res.FileName == "" {
		res.FileName = fileName
	}
	return res, nil
}
