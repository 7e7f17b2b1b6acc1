package rotation

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"backup-rotator/internal/archive"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
	"backup-rotator/internal/remote"
)

// item is the working model of one backup item during a run. Stages read
// and update it; in a dry run only the model changes.
type item struct {
	id string

	source  bool
	local   bool
	archive bool // archive in the configured format
	remote  bool

	// archives lists every archive file of the item, in any format
	archives []string

	expired bool
	removed bool

	report *ItemReport
}

func (it *item) state() ItemState {
	switch {
	case it.removed:
		return StateRemoved
	case it.expired:
		return StateExpired
	case it.remote:
		return StateUploaded
	case it.archive:
		return StateArchived
	case it.local:
		return StateCollected
	default:
		return StatePendingSource
	}
}

func (it *item) addArchive(name string) {
	for _, a := range it.archives {
		if a == name {
			return
		}
	}
	it.archives = append(it.archives, name)
}

// typeState is everything known about one backup type during a run
type typeState struct {
	name      string
	uploads   bool
	sourceDir string
	localDir  string

	sourceMissing bool
	items         map[string]*item

	logger *logging.Logger
	report *TypeReport
}

func (ts *typeState) get(id string) *item {
	it, ok := ts.items[id]
	if !ok {
		it = &item{id: id}
		ts.items[id] = it
	}
	return it
}

// sorted returns the items in ascending identity order
func (ts *typeState) sorted() []*item {
	out := make([]*item, 0, len(ts.items))
	for _, it := range ts.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// localIDs returns the ids of items with a local copy, ascending
func (ts *typeState) localIDs() []string {
	var ids []string
	for _, it := range ts.sorted() {
		if it.local {
			ids = append(ids, it.id)
		}
	}
	return ids
}

func (ts *typeState) itemReport(it *item) *ItemReport {
	if it.report == nil {
		it.report = &ItemReport{ID: it.id}
	}
	return it.report
}

// record counts and logs the outcome of stage for it. It returns err when
// the failure is not recoverable and the stage must stop for this type.
func (ts *typeState) record(it *item, stage Stage, err error) error {
	c := ts.report.Counters(stage)
	ir := ts.itemReport(it)
	if err != nil {
		c.Failed++
		ir.FailedStage = stage
		ir.Error = err.Error()
	} else {
		c.Processed++
		ir.Actions = append(ir.Actions, stage)
	}
	ts.logger.LogItem(string(stage), ts.name, it.id, err)

	if err != nil && !appErrors.IsRecoverableError(err) {
		return err
	}
	return nil
}

// skip counts and logs an item stage deliberately left alone
func (ts *typeState) skip(it *item, stage Stage, reason string) {
	ts.report.Counters(stage).Skipped++
	ts.itemReport(it)
	ts.logger.LogItemSkipped(string(stage), ts.name, it.id, reason)
}

// warn attaches a non-fatal problem to the item report
func (ts *typeState) warn(it *item, stage Stage, msg string, err error) {
	ir := ts.itemReport(it)
	ir.Warnings = append(ir.Warnings, msg+": "+err.Error())

	fields := appErrors.Fields(err)
	fields["stage"] = string(stage)
	fields["type"] = ts.name
	fields["item"] = it.id
	fields["error"] = err.Error()
	ts.logger.WithFields(fields).Warn(msg)
}

// finish fills the final state of every item into the type report
func (ts *typeState) finish() *TypeReport {
	ts.report.Items = ts.report.Items[:0]
	for _, it := range ts.sorted() {
		ir := ts.itemReport(it)
		ir.State = it.state()
		ts.report.Items = append(ts.report.Items, ir)
	}
	sortItemReports(ts.report.Items)
	return ts.report
}

// inspect derives the state of every item of a backup type from the
// source folder, the local folder and the remote store.
func (o *Orchestrator) inspect(ctx context.Context, logger *logging.Logger, name string) (*typeState, error) {
	ts := &typeState{
		name:      name,
		uploads:   o.cfg.IsUploadType(name),
		sourceDir: filepath.Join(o.cfg.SourcePath, name),
		localDir:  filepath.Join(o.cfg.LocalPath, name),
		items:     make(map[string]*item),
		logger:    logger,
	}
	ts.report = newTypeReport(name, ts.uploads)

	sourceEntries, err := readDir(ts.sourceDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ts.sourceMissing = true
	case err != nil:
		return nil, appErrors.NewStorageError("failed to list source folder", err).
			WithContext("path", ts.sourceDir)
	}
	for _, e := range sourceEntries {
		if e.IsDir() {
			ts.get(e.Name()).source = true
			continue
		}
		// Symlinks are not followed, even to folders
		ts.logger.WithFields(map[string]interface{}{
			"type":    name,
			"entry":   e.Name(),
			"symlink": e.Type()&fs.ModeSymlink != 0,
		}).Warn("Source entry is not a folder, ignored")
	}

	localEntries, err := readDir(ts.localDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, appErrors.NewStorageError("failed to list local folder", err).
			WithContext("path", ts.localDir)
	}
	current := o.archiver.Format()
	for _, e := range localEntries {
		if e.IsDir() {
			ts.get(e.Name()).local = true
			continue
		}
		for _, f := range archive.Formats() {
			id, ok := archive.ItemID(e.Name(), f)
			if !ok {
				continue
			}
			it := ts.get(id)
			it.addArchive(e.Name())
			if f == current {
				it.archive = true
			}
			break
		}
	}

	if ts.uploads {
		for _, it := range ts.sorted() {
			if err := ctx.Err(); err != nil {
				return nil, appErrors.WrapError(err, "inspection interrupted")
			}
			key := remote.Key(o.cfg.Branch, name, o.archiver.Name(it.id))
			exists, err := o.provider.Exists(ctx, key)
			if err != nil {
				// Unknown counts as not uploaded, so nothing is deleted on its account
				ts.warn(it, StageUpload, "Failed to check remote object", err)
				continue
			}
			it.remote = exists
		}
	}

	return ts, nil
}

// readDir lists dir without hidden entries. Temporaries from this tool and
// the lock file are hidden.
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// isExpired reports whether id would be pruned at once by a keep-k window
// over the sorted ids in local
func isExpired(local []string, id string, k int) bool {
	if k <= 0 || len(local) < k {
		return false
	}
	return id < local[len(local)-k]
}
