// Package folders maps a suggested "/" path onto existing WorkDrive folders.
package folders

import (
	"context"
	"fmt"
	"strings"

	"filing-backend/internal/shared/resilience"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/workdrive"
)

// Lister lists the immediate child folders of a folder.
type Lister interface {
	ListFolders(ctx context.Context, parentID string) ([]workdrive.Folder, error)
}

// ResolutionFailure reports the first path segment with no matching folder.
// Later segments were not looked at.
type ResolutionFailure struct {
	Segment  string
	Index    int
	ParentID string
}

func (f *ResolutionFailure) Error() string {
	return fmt.Sprintf("no folder matching %q under %s (segment %d)", f.Segment, f.ParentID, f.Index+1)
}

// Options tunes a Resolver.
type Options struct {
	Threshold float64
	Executor  *resilience.Executor
	Policy    resilience.Policy
}

// Resolver walks a path one level at a time. It never creates folders.
type Resolver struct {
	lister    Lister
	threshold float64
	exec      *resilience.Executor
	policy    resilience.Policy
}

// NewResolver builds a Resolver over lister.
func NewResolver(lister Lister, opts Options) *Resolver {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{
		lister:    lister,
		threshold: threshold,
		exec:      opts.Executor,
		policy:    opts.Policy,
	}
}

// Resolve returns the folder id reached after consuming every segment under
// rootID. A missing segment yields a *ResolutionFailure; listing errors are
// returned as-is.
func (r *Resolver) Resolve(ctx context.Context, rootID string, segments []string) (string, error) {
	current := strings.TrimSpace(rootID)
	if current == "" {
		return "", fmt.Errorf("resolve folders: root folder id is required")
	}

	for i, segment := range segments {
		folder, ok, err := r.FindChild(ctx, current, segment, true)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &ResolutionFailure{Segment: segment, Index: i, ParentID: current}
		}
		telemetry.Debug("folders.segment_resolved", map[string]any{
			"segment":   segment,
			"index":     i,
			"parent_id": current,
			"folder_id": folder.ID,
		})
		current = folder.ID
	}
	return current, nil
}

// FindChild looks for name among parentID's child folders, fuzzy or exact.
func (r *Resolver) FindChild(ctx context.Context, parentID, name string, fuzzy bool) (workdrive.Folder, bool, error) {
	candidates, err := r.Children(ctx, parentID)
	if err != nil {
		return workdrive.Folder{}, false, err
	}
	folder, _, ok := Match(candidates, name, fuzzy, r.threshold)
	return folder, ok, nil
}

// Children lists parentID's child folders under the resolver's call policy.
func (r *Resolver) Children(ctx context.Context, parentID string) ([]workdrive.Folder, error) {
	var candidates []workdrive.Folder
	err := r.exec.Do(ctx, "workdrive.list_folders", r.policy, func(ctx context.Context) error {
		var err error
		candidates, err = r.lister.ListFolders(ctx, parentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list folders under %s: %w", parentID, err)
	}
	return candidates, nil
}
