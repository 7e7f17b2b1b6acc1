package rotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appErrors "backup-rotator/internal/errors"
)

// retain deletes local copies that finished their lifecycle. Upload types
// drop every uploaded item beyond the keep_uploaded window; other types
// keep the retention_count most recent copies.
func (o *Orchestrator) retain(ctx context.Context, ts *typeState) error {
	c := ts.report.Counters(StageRetain)
	done := ts.logger.LogStageStart(string(StageRetain), ts.name)
	defer func() { done(c.Processed, c.Failed) }()

	var (
		doomed []*item
		keep   int
		reason string
	)

	items := ts.sorted()
	if ts.uploads {
		keep, reason = o.cfg.KeepUploaded, "within keep_uploaded window"
		// Newest first; items not confirmed uploaded are never candidates
		for i := len(items) - 1; i >= 0; i-- {
			it := items[i]
			if it.remote && (it.local || len(it.archives) > 0) {
				doomed = append(doomed, it)
			}
		}
	} else {
		keep, reason = o.cfg.RetentionCount, "within retention_count window"
		for i := len(items) - 1; i >= 0; i-- {
			if items[i].local {
				doomed = append(doomed, items[i])
			}
		}
	}

	for i, it := range doomed {
		if i < keep {
			ts.skip(it, StageRetain, reason)
			continue
		}
		if err := ctx.Err(); err != nil {
			return appErrors.WrapError(err, "retention interrupted")
		}

		err := o.removeItem(ts, it)
		if abort := ts.record(it, StageRetain, err); abort != nil {
			return abort
		}
		if err == nil {
			it.removed = true
		}
	}
	return nil
}

// removeItem deletes the local copy of it and any archive left next to it
func (o *Orchestrator) removeItem(ts *typeState, it *item) error {
	if o.cfg.DryRun {
		return nil
	}

	if it.local {
		if err := os.RemoveAll(filepath.Join(ts.localDir, it.id)); err != nil {
			return appErrors.NewStorageError("failed to delete local copy", err)
		}
		it.local = false
	}

	if err := o.removeArchives(ts, it, StageRetain); err != nil {
		return appErrors.NewStorageError(fmt.Sprintf("failed to delete %d archive(s)", len(it.archives)), err)
	}
	return nil
}
