package rotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/remote"
)

// uploadItems sends every pending archive of ts to the remote store. A
// successful upload deletes the archive; a failed one leaves it for the
// next run.
func (o *Orchestrator) uploadItems(ctx context.Context, ts *typeState) error {
	c := ts.report.Counters(StageUpload)
	done := ts.logger.LogStageStart(string(StageUpload), ts.name)
	defer func() { done(c.Processed, c.Failed) }()

	for _, it := range ts.sorted() {
		if !it.archive {
			continue
		}
		if it.remote {
			// Uploaded in an earlier run; only the archive was left behind
			o.removeArchives(ts, it, StageUpload)
			continue
		}
		if err := ctx.Err(); err != nil {
			return appErrors.WrapError(err, "upload interrupted")
		}

		err := o.uploadItem(ctx, ts, it)
		if abort := ts.record(it, StageUpload, err); abort != nil {
			return abort
		}
		if err != nil {
			continue
		}
		it.remote = true
		o.removeArchives(ts, it, StageUpload)
	}
	return nil
}

func (o *Orchestrator) uploadItem(ctx context.Context, ts *typeState, it *item) error {
	name := o.archiver.Name(it.id)
	key := remote.Key(o.cfg.Branch, ts.name, name)

	if o.cfg.DryRun {
		ts.logger.WithFields(map[string]interface{}{
			"type": ts.name,
			"item": it.id,
			"key":  key,
		}).Info("Would upload archive")
		return nil
	}

	if err := o.provider.Upload(ctx, filepath.Join(ts.localDir, name), key); err != nil {
		return appErrors.WrapError(err, fmt.Sprintf("failed to upload %s", key))
	}
	return nil
}

// removeArchives deletes every archive file of it. Files that cannot be
// removed stay listed so the retainer retries them.
func (o *Orchestrator) removeArchives(ts *typeState, it *item, stage Stage) error {
	var (
		kept    []string
		lastErr error
	)
	for _, name := range it.archives {
		if o.cfg.DryRun {
			continue
		}
		if err := os.Remove(filepath.Join(ts.localDir, name)); err != nil && !os.IsNotExist(err) {
			ts.warn(it, stage, "Failed to remove archive", err)
			kept = append(kept, name)
			lastErr = err
		}
	}

	it.archives = kept
	it.archive = false
	for _, name := range kept {
		if name == o.archiver.Name(it.id) {
			it.archive = true
		}
	}
	return lastErr
}
