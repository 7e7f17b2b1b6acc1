package rotation

import (
	"context"
	"path/filepath"

	"backup-rotator/internal/archive"
	appErrors "backup-rotator/internal/errors"
)

// archiveItems compresses every local copy of an upload type that has
// neither an archive nor a remote object yet
func (o *Orchestrator) archiveItems(ctx context.Context, ts *typeState) error {
	c := ts.report.Counters(StageArchive)
	done := ts.logger.LogStageStart(string(StageArchive), ts.name)
	defer func() { done(c.Processed, c.Failed) }()

	o.removeTemps(ts, archive.TempPrefix)

	for _, it := range ts.sorted() {
		if !it.local || it.archive || it.remote {
			continue
		}
		if err := ctx.Err(); err != nil {
			return appErrors.WrapError(err, "archiving interrupted")
		}

		err := o.archiveItem(ctx, ts, it)
		if abort := ts.record(it, StageArchive, err); abort != nil {
			return abort
		}
		if err != nil {
			continue
		}
		it.archive = true
		it.addArchive(o.archiver.Name(it.id))
	}
	return nil
}

func (o *Orchestrator) archiveItem(ctx context.Context, ts *typeState, it *item) error {
	if o.cfg.DryRun {
		return nil
	}

	archivePath := filepath.Join(ts.localDir, o.archiver.Name(it.id))
	stats, err := o.archiver.Create(ctx, filepath.Join(ts.localDir, it.id), archivePath)
	if err != nil {
		if ctx.Err() != nil {
			return appErrors.WrapError(ctx.Err(), "archiving interrupted")
		}
		return appErrors.NewCompressionError("failed to archive item", err)
	}

	ts.logger.WithFields(map[string]interface{}{
		"type":         ts.name,
		"item":         it.id,
		"files":        stats.Files,
		"bytes_read":   stats.BytesRead,
		"archive_size": stats.ArchiveSize,
		"duration":     stats.Duration.String(),
	}).Debug("Archive created")
	return nil
}
