// Package pipeline runs the batch job that classifies pending documents and
// files them into the account's WorkDrive folder tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filing-backend/internal/classify"
	"filing-backend/internal/documents"
	"filing-backend/internal/filer"
	"filing-backend/internal/folders"
	"filing-backend/internal/shared/metrics"
	"filing-backend/internal/shared/resilience"
	"filing-backend/internal/shared/storage/object"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/shared/util"
	"filing-backend/internal/uploadlogs"
)

const (
	defaultBatchSize = 50
	defaultClaimTTL  = 30 * time.Minute
)

// DocumentStore is the slice of the documents repo the runner drives.
type DocumentStore interface {
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]documents.Claim, error)
	Release(ctx context.Context, documentID string) error
	MarkCompleted(ctx context.Context, documentID string, metadata documents.Metadata) error
	MarkFailed(ctx context.Context, documentID string) error
}

// LogStore is the slice of the upload log repo the runner drives.
type LogStore interface {
	Create(ctx context.Context, log uploadlogs.Log) (uploadlogs.Log, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	AbandonPending(ctx context.Context, documentID, reason string) (int64, error)
}

// Classifier suggests a folder path for a document.
type Classifier interface {
	Excerpt(ctx context.Context, body []byte, contentType, fileName string) string
	Classify(ctx context.Context, in classify.Input) (*classify.Result, error)
}

// FolderResolver maps path segments to a folder id under a root.
type FolderResolver interface {
	Resolve(ctx context.Context, rootID string, segments []string) (string, error)
}

// Uploader stores a document in a folder.
type Uploader interface {
	Upload(ctx context.Context, folderID string, body []byte, fileName, contentType string, override bool) (filer.Result, error)
}

// RootLookup returns an account's root folder id, "" when none.
type RootLookup interface {
	RootFolderID(ctx context.Context, accountID string) (string, error)
}

// Timeouts bound each external call.
type Timeouts struct {
	Fetch    time.Duration
	Classify time.Duration
	CRM      time.Duration
}

// Deps are the runner's collaborators. Lock and Executor are optional.
type Deps struct {
	Documents  DocumentStore
	Logs       LogStore
	Fetcher    object.Fetcher
	Classifier Classifier
	Roots      RootLookup
	Resolver   FolderResolver
	Filer      Uploader
	Executor   *resilience.Executor
	Lock       Locker
}

// Options tunes a run.
type Options struct {
	BatchSize int
	ClaimTTL  time.Duration
	Timeouts  Timeouts
	// KeepExisting disables overwriting a same-named file in the target folder.
	KeepExisting bool
}

// Summary counts the outcomes of one run.
type Summary struct {
	Claimed   int
	Completed int
	Failed    int
	Skipped   int
	Released  int
	Duration  time.Duration
}

// Runner processes claimed documents one at a time.
type Runner struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// NewRunner validates deps and applies defaults.
func NewRunner(deps Deps, opts Options) (*Runner, error) {
	switch {
	case deps.Documents == nil:
		return nil, errors.New("pipeline: documents store is required")
	case deps.Logs == nil:
		return nil, errors.New("pipeline: upload log store is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: object fetcher is required")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Roots == nil:
		return nil, errors.New("pipeline: root folder lookup is required")
	case deps.Resolver == nil:
		return nil, errors.New("pipeline: folder resolver is required")
	case deps.Filer == nil:
		return nil, errors.New("pipeline: filer is required")
	}
	if deps.Lock == nil {
		deps.Lock = &MutexLock{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	return &Runner{deps: deps, opts: opts, now: time.Now}, nil
}

// Run claims one batch and processes it sequentially. Per-document failures
// are recorded on the document and never abort the batch. The returned error
// is non-nil when the claim itself failed or when outcome writes failed
// (joined *PersistenceError values).
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()

	release, ok, err := r.deps.Lock.TryLock(ctx)
	if err != nil {
		metrics.IncRun("error")
		return Summary{}, err
	}
	if !ok {
		metrics.IncRun("skipped")
		telemetry.Info("filing.run.skipped", map[string]any{"reason": "locked"})
		return Summary{}, ErrRunInProgress
	}
	defer release()

	claims, err := r.deps.Documents.ClaimPending(ctx, r.opts.BatchSize, start.Add(-r.opts.ClaimTTL))
	if err != nil {
		metrics.IncRun("error")
		telemetry.Error("filing.run.claim_failed", map[string]any{"error": err.Error()})
		return Summary{}, err
	}

	summary := Summary{Claimed: len(claims)}
	telemetry.Info("filing.run.start", map[string]any{
		"claimed":    len(claims),
		"batch_size": r.opts.BatchSize,
	})

	var persistErrs []error
	for _, claim := range claims {
		a := r.process(ctx, claim)
		switch a.outcome {
		case outcomeCompleted:
			summary.Completed++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeReleased:
			summary.Released++
		}
		persistErrs = append(persistErrs, a.persistErrs...)
	}

	summary.Duration = r.now().Sub(start)
	metrics.ObserveRunDuration(summary.Duration)

	runErr := errors.Join(persistErrs...)
	result := "ok"
	if runErr != nil {
		result = "error"
	}
	metrics.IncRun(result)

	fields := map[string]any{
		"claimed":     summary.Claimed,
		"completed":   summary.Completed,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
		"released":    summary.Released,
		"duration_ms": summary.Duration.Milliseconds(),
	}
	if runErr != nil {
		fields["persistence_errors"] = len(persistErrs)
		telemetry.Error("filing.run.complete", fields)
	} else {
		telemetry.Info("filing.run.complete", fields)
	}
	return summary, runErr
}

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomeFailed    outcome = "failed"
	outcomeSkipped   outcome = "skipped"
	outcomeReleased  outcome = "released"
)

// attempt is the state of one document's pass through the pipeline.
type attempt struct {
	doc         documents.Claim
	log         *uploadlogs.Log
	outcome     outcome
	persistErrs []error
}

func (a *attempt) persisted(op string, err error) bool {
	if err == nil {
		return true
	}
	perr := &PersistenceError{Op: op, DocumentID: a.doc.ID, Err: err}
	a.persistErrs = append(a.persistErrs, perr)
	telemetry.Error("filing.document.persist_failed", map[string]any{
		"document_id": a.doc.ID,
		"op":          op,
		"error":       err.Error(),
	})
	return false
}

func (a *attempt) fields() map[string]any {
	fields := map[string]any{
		"document_id": a.doc.ID,
		"file_name":   a.doc.FileName,
	}
	if a.doc.Metadata != nil {
		fields["account_id"] = a.doc.Metadata.AccountID
	}
	if a.log != nil {
		fields["log_id"] = a.log.ID
	}
	return fields
}

func (r *Runner) process(ctx context.Context, claim documents.Claim) *attempt {
	a := &attempt{doc: claim}
	metrics.StartDocument()
	defer metrics.FinishDocument()
	defer func() { metrics.IncDocument(string(a.outcome)) }()

	if claim.Reclaimed {
		n, err := r.deps.Logs.AbandonPending(ctx, claim.ID, reasonAbandoned)
		if a.persisted("abandon_pending_logs", err) && n > 0 {
			telemetry.Warn("filing.document.reclaimed", map[string]any{
				"document_id":    claim.ID,
				"abandoned_logs": n,
			})
		}
	}

	if claim.MetadataErr != nil {
		r.fail(ctx, a, util.SanitizeReason(claim.MetadataErr, reasonUnknown), claim.MetadataErr)
		return a
	}

	if claim.Metadata == nil {
		a.outcome = outcomeSkipped
		a.persisted("release", r.deps.Documents.Release(ctx, claim.ID))
		telemetry.Debug("filing.document.skipped", a.fields())
		return a
	}

	if err := r.file(ctx, a); err != nil {
		var perr *PersistenceError
		if errors.As(err, &perr) {
			a.persistErrs = append(a.persistErrs, perr)
		}
		r.fail(ctx, a, util.SanitizeReason(err, reasonUnknown), err)
	}
	return a
}

// file runs fetch through upload. A returned error is handled at the
// document boundary by fail; terminal states reached inside are recorded here.
func (r *Runner) file(ctx context.Context, a *attempt) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	doc := a.doc
	meta := doc.Metadata

	obj, err := r.fetch(ctx, doc)
	if err != nil {
		return err
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}

	result, err := r.classify(ctx, doc, obj, contentType)
	if err != nil {
		return err
	}

	log, err := r.deps.Logs.Create(ctx, newLog(doc, result))
	if err != nil {
		return &PersistenceError{Op: "create_log", DocumentID: doc.ID, Err: err}
	}
	a.log = &log
	telemetry.Info("filing.document.classified", withClassification(a.fields(), result))

	rootID, err := r.rootFolder(ctx, meta.AccountID)
	if err != nil {
		return err
	}

	segments := result.Segments()
	if len(segments) == 0 {
		r.fail(ctx, a, reasonNoFolder, nil)
		return nil
	}

	if rootID == "" {
		r.releaseWithoutFolder(ctx, a)
		return nil
	}

	stageStart := time.Now()
	folderID, err := r.deps.Resolver.Resolve(ctx, rootID, segments)
	metrics.ObserveStage("resolve", time.Since(stageStart), err)
	var miss *folders.ResolutionFailure
	if errors.As(err, &miss) {
		fields := a.fields()
		fields["segment"] = miss.Segment
		fields["segment_index"] = miss.Index
		r.fail(ctx, a, reasonNoFolder, nil)
		telemetry.Info("filing.document.unresolved", fields)
		return nil
	}
	if err != nil {
		return err
	}
	if folderID == "" {
		r.releaseWithoutFolder(ctx, a)
		return nil
	}

	fileName := doc.FileName
	if fileName == "" {
		fileName = obj.FileName
	}
	stageStart = time.Now()
	uploaded, err := r.deps.Filer.Upload(ctx, folderID, obj.Body, fileName, contentType, !r.opts.KeepExisting)
	metrics.ObserveStage("upload", time.Since(stageStart), err)
	if err != nil {
		return err
	}
	if strings.TrimSpace(uploaded.ResourceID) == "" {
		r.fail(ctx, a, reasonNoResourceID, nil)
		return nil
	}

	r.complete(ctx, a, uploaded, result.SuggestedPath)
	return nil
}

func (r *Runner) fetch(ctx context.Context, doc documents.Claim) (object.Object, error) {
	var obj object.Object
	start := time.Now()
	err := r.deps.Executor.Do(ctx, "object.fetch", resilience.Policy{Timeout: r.opts.Timeouts.Fetch, Retry: true}, func(ctx context.Context) error {
		var err error
		obj, err = r.deps.Fetcher.Fetch(ctx, doc.FileURL)
		return err
	})
	metrics.ObserveStage("fetch", time.Since(start), err)
	if err != nil {
		var retrieval *object.RetrievalError
		if !errors.As(err, &retrieval) {
			err = &object.RetrievalError{Ref: doc.FileURL, Err: err}
		}
		return object.Object{}, err
	}
	return obj, nil
}

func (r *Runner) classify(ctx context.Context, doc documents.Claim, obj object.Object, contentType string) (*classify.Result, error) {
	meta := doc.Metadata
	in := classify.Input{
		FileName:    doc.FileName,
		ContentType: contentType,
		SizeBytes:   obj.ContentLength,
		AccountID:   meta.AccountID,
		UploadedAt:  doc.CreatedAt,
		Excerpt:     r.deps.Classifier.Excerpt(ctx, obj.Body, contentType, doc.FileName),
	}
	if meta.User != nil {
		in.UserName = meta.User.Name
		in.UserEmail = meta.User.Email
	}

	var result *classify.Result
	start := time.Now()
	err := r.deps.Executor.Do(ctx, "llm.classify", resilience.Policy{Timeout: r.opts.Timeouts.Classify}, func(ctx context.Context) error {
		var err error
		result, err = r.deps.Classifier.Classify(ctx, in)
		return err
	})
	metrics.ObserveStage("classify", time.Since(start), err)
	if err != nil {
		var cerr *classify.ClassificationError
		if !errors.As(err, &cerr) {
			err = &classify.ClassificationError{FileName: doc.FileName, Err: err}
		}
		return nil, err
	}
	return result, nil
}

func (r *Runner) rootFolder(ctx context.Context, accountID string) (string, error) {
	var rootID string
	start := time.Now()
	err := r.deps.Executor.Do(ctx, "crm.root_folder", resilience.Policy{Timeout: r.opts.Timeouts.CRM, Retry: true}, func(ctx context.Context) error {
		var err error
		rootID, err = r.deps.Roots.RootFolderID(ctx, accountID)
		return err
	})
	metrics.ObserveStage("crm", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("look up root folder for account %s: %w", accountID, err)
	}
	return strings.TrimSpace(rootID), nil
}

func (r *Runner) complete(ctx context.Context, a *attempt, uploaded filer.Result, folderPath string) {
	link := documents.StorageLinkage{
		ResourceID: uploaded.ResourceID,
		ParentID:   uploaded.ParentID,
		Permalink:  uploaded.Permalink,
		FileName:   uploaded.FileName,
		FolderPath: folderPath,
		UploadedAt: r.now().UTC(),
	}
	merged := a.doc.Metadata.WithLinkage(link)

	a.outcome = outcomeCompleted
	docOK := a.persisted("mark_document_completed", r.deps.Documents.MarkCompleted(ctx, a.doc.ID, merged))
	if a.log != nil {
		a.persisted("mark_log_completed", r.deps.Logs.MarkCompleted(ctx, a.log.ID))
	}

	fields := a.fields()
	fields["resource_id"] = uploaded.ResourceID
	fields["folder_id"] = uploaded.ParentID
	fields["persisted"] = docOK
	telemetry.Info("filing.document.completed", fields)
}

// fail records a terminal failure. The attempt log is updated when one
// exists; otherwise a fresh failed log is inserted.
func (r *Runner) fail(ctx context.Context, a *attempt, reason string, cause error) {
	a.outcome = outcomeFailed

	if a.log != nil {
		a.persisted("mark_log_failed", r.deps.Logs.MarkFailed(ctx, a.log.ID, reason))
	} else {
		entry := newLog(a.doc, nil)
		entry.Status = uploadlogs.StatusFailed
		entry.ErrorMessage = &reason
		if log, err := r.deps.Logs.Create(ctx, entry); a.persisted("create_failed_log", err) {
			a.log = &log
		}
	}
	a.persisted("mark_document_failed", r.deps.Documents.MarkFailed(ctx, a.doc.ID))

	fields := a.fields()
	fields["reason"] = reason
	if cause != nil {
		fields["error_type"] = errorType(cause)
	}
	telemetry.Warn("filing.document.failed", fields)
}

// releaseWithoutFolder hands the document back to pending when the account
// has no root folder, closing the attempt log so none stays pending.
func (r *Runner) releaseWithoutFolder(ctx context.Context, a *attempt) {
	a.outcome = outcomeReleased
	if a.log != nil {
		a.persisted("mark_log_failed", r.deps.Logs.MarkFailed(ctx, a.log.ID, reasonNoRoot))
	}
	a.persisted("release", r.deps.Documents.Release(ctx, a.doc.ID))
	telemetry.Info("filing.document.no_root_folder", a.fields())
}

func newLog(doc documents.Claim, result *classify.Result) uploadlogs.Log {
	entry := uploadlogs.Log{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		UserID:     doc.UserID,
		Status:     uploadlogs.StatusPending,
	}
	if doc.Metadata != nil {
		entry.AccountID = doc.Metadata.AccountID
	}
	if result != nil {
		entry.SuggestedPath = nonEmpty(result.SuggestedPath)
		entry.Category = nonEmpty(result.Category)
		confidence := result.Confidence
		entry.Confidence = &confidence
		entry.Reasoning = nonEmpty(result.Reasoning)
	}
	return entry
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func withClassification(fields map[string]any, result *classify.Result) map[string]any {
	if result == nil {
		fields["classified"] = false
		return fields
	}
	fields["classified"] = true
	fields["category"] = result.Category
	fields["confidence"] = result.Confidence
	fields["suggested_path"] = result.SuggestedPath
	return fields
}

func errorType(err error) string {
	var (
		retrieval   *object.RetrievalError
		classifyErr *classify.ClassificationError
		uploadErr   *filer.UploadError
		persistErr  *PersistenceError
	)
	switch {
	case errors.As(err, &retrieval):
		return "retrieval"
	case errors.As(err, &classifyErr):
		return "classification"
	case errors.As(err, &uploadErr):
		return "upload"
	case errors.As(err, &persistErr):
		return "persistence"
	case resilience.IsCircuitOpen(err):
		return "circuit_open"
	default:
		return "other"
	}
}
