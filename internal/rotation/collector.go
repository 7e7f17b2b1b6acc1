package rotation

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	appErrors "backup-rotator/internal/errors"
)

// CollectTempPrefix marks a local copy still being written
const CollectTempPrefix = ".collect-"

// collect copies every new source item of ts into local storage
func (o *Orchestrator) collect(ctx context.Context, ts *typeState) error {
	c := ts.report.Counters(StageCollect)
	done := ts.logger.LogStageStart(string(StageCollect), ts.name)
	defer func() { done(c.Processed, c.Failed) }()

	o.removeTemps(ts, CollectTempPrefix)

	if ts.sourceMissing {
		ts.logger.WithFields(map[string]interface{}{
			"type": ts.name,
			"path": ts.sourceDir,
		}).Warn("Source folder missing, nothing to collect")
		return nil
	}

	if !o.cfg.DryRun {
		if err := os.MkdirAll(ts.localDir, 0755); err != nil {
			return appErrors.NewStorageError("failed to create local folder", err).
				WithContext("path", ts.localDir)
		}
	}

	var candidates []*item
	for _, it := range ts.sorted() {
		if it.source && !it.local {
			candidates = append(candidates, it)
		}
	}
	// Newest first, so items a keep-K window would drop at once are never copied
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id > candidates[j].id })

	local := ts.localIDs()
	for _, it := range candidates {
		if err := ctx.Err(); err != nil {
			return appErrors.WrapError(err, "collection interrupted")
		}

		switch {
		case ts.uploads && it.remote:
			ts.skip(it, StageCollect, "already uploaded")
			o.removeSource(ts, it)
			continue
		case !ts.uploads && isExpired(local, it.id, o.cfg.RetentionCount):
			it.expired = true
			ts.skip(it, StageCollect, "older than the retained local copies")
			o.removeSource(ts, it)
			continue
		}

		err := o.collectItem(ctx, ts, it)
		if abort := ts.record(it, StageCollect, err); abort != nil {
			return abort
		}
		if err != nil {
			continue
		}

		it.local = true
		local = insertSorted(local, it.id)
		o.removeSource(ts, it)
	}
	return nil
}

func (o *Orchestrator) collectItem(ctx context.Context, ts *typeState, it *item) error {
	src := filepath.Join(ts.sourceDir, it.id)

	if o.cfg.DryRun {
		if _, err := os.ReadDir(src); err != nil {
			return appErrors.WrapError(err, "source item is not readable")
		}
		return nil
	}

	tmp, err := os.MkdirTemp(ts.localDir, CollectTempPrefix+it.id+"-")
	if err != nil {
		return appErrors.NewStorageError("failed to create temporary folder", err)
	}

	if err := copyTree(ctx, src, tmp); err != nil {
		os.RemoveAll(tmp)
		return appErrors.WrapError(err, "failed to copy item")
	}

	if err := os.Rename(tmp, filepath.Join(ts.localDir, it.id)); err != nil {
		os.RemoveAll(tmp)
		return appErrors.NewStorageError("failed to move copy into place", err)
	}
	return nil
}

// removeSource deletes the source folder of a collected or already handled
// item when remove_source is set. Failure is only a warning.
func (o *Orchestrator) removeSource(ts *typeState, it *item) {
	if !o.cfg.RemoveSource || o.cfg.DryRun {
		return
	}
	if err := os.RemoveAll(filepath.Join(ts.sourceDir, it.id)); err != nil {
		ts.warn(it, StageCollect, "Failed to remove source item", err)
		return
	}
	it.source = false
}

// removeTemps deletes leftovers of interrupted runs
func (o *Orchestrator) removeTemps(ts *typeState, prefix string) {
	entries, err := os.ReadDir(ts.localDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		path := filepath.Join(ts.localDir, e.Name())
		fields := map[string]interface{}{
			"type": ts.name,
			"path": path,
		}

		if o.cfg.DryRun {
			ts.logger.WithFields(fields).Info("Would remove stale temporary")
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			fields["error"] = err.Error()
			ts.logger.WithFields(fields).Warn("Failed to remove stale temporary")
			continue
		}
		ts.logger.WithFields(fields).Info("Removed stale temporary")
	}
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// copyTree copies the contents of src into the existing folder dst. Regular
// files keep their mode and modification time; symlinks are recreated;
// other special files are skipped.
func copyTree(ctx context.Context, src, dst string) error {
	buf := make([]byte, 256*1024)

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			// Owner write is kept so the copy can be pruned later
			perm := info.Mode().Perm() | 0700
			if rel == "." {
				return os.Chmod(dst, perm)
			}
			return os.Mkdir(target, perm)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			if err := copyFile(path, target, info.Mode().Perm(), buf); err != nil {
				return err
			}
			return os.Chtimes(target, info.ModTime(), info.ModTime())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode, buf []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
