// Package rotation runs the backup lifecycle: collect new items from the
// source, archive and upload the ones of upload types, and prune local
// copies.
//
// No state is persisted between runs. Each run derives what is already
// done from the source folder, the local folder and the remote store, so
// an interrupted run is completed by the next one.
package rotation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"backup-rotator/internal/archive"
	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
	"backup-rotator/internal/remote"
)

// Orchestrator runs rotation passes over every configured backup type
type Orchestrator struct {
	cfg      *config.Config
	archiver *archive.Archiver
	provider remote.Provider
	logger   *logging.Logger
}

// New creates an Orchestrator. provider may be nil when no type uploads.
func New(cfg *config.Config, provider remote.Provider, logger *logging.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, appErrors.NewConfigurationError("configuration is required", nil)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if len(cfg.UploadTypes) > 0 && provider == nil {
		return nil, appErrors.NewConfigurationError("a remote provider is required for upload types", nil)
	}

	archiver, err := archive.New(cfg.Archive.Format, cfg.Archive.Level)
	if err != nil {
		return nil, appErrors.NewConfigurationError("invalid archive settings", err)
	}

	return &Orchestrator{
		cfg:      cfg,
		archiver: archiver,
		provider: provider,
		logger:   logger,
	}, nil
}

// Run performs one rotation pass. Per-item failures are recorded in the
// report and never returned; the error is set only when the run could not
// start or was interrupted.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	logger := o.logger.WithRunID(runID)

	report := &RunReport{
		RunID:     runID,
		Branch:    o.cfg.Branch,
		DryRun:    o.cfg.DryRun,
		StartedAt: time.Now(),
	}

	finish := logger.LogOperationStart("rotation", map[string]interface{}{
		"branch":  o.cfg.Branch,
		"types":   len(o.cfg.BackupTypes),
		"dry_run": o.cfg.DryRun,
	})

	// A dry run changes nothing, so it neither needs nor creates the lock
	if o.cfg.Lock && !o.cfg.DryRun {
		lock, err := AcquireLock(o.cfg.LocalPath)
		if err != nil {
			finish(err)
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.WithField("error", err.Error()).Warn("Failed to release run lock")
			}
		}()
	}

	var runErr error
	for _, name := range o.cfg.BackupTypes {
		if err := ctx.Err(); err != nil {
			runErr = appErrors.WrapError(err, "rotation interrupted")
			break
		}
		report.Types = append(report.Types, o.runType(ctx, logger, name))
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = appErrors.WrapError(ctx.Err(), "rotation interrupted")
	}

	report.Duration = time.Since(report.StartedAt)
	finish(runErr)

	logger.WithFields(map[string]interface{}{
		"failures": report.Failures(),
		"duration": report.Duration.String(),
	}).Info("Rotation finished")
	return report, runErr
}

// runType runs the stages of one backup type in order. A stage error stops
// the remaining stages of that type only.
func (o *Orchestrator) runType(ctx context.Context, logger *logging.Logger, name string) *TypeReport {
	ts, err := o.inspect(ctx, logger, name)
	if err != nil {
		fields := appErrors.Fields(err)
		fields["type"] = name
		fields["error"] = err.Error()
		logger.WithFields(fields).Error("Failed to inspect backup type")
		tr := newTypeReport(name, o.cfg.IsUploadType(name))
		tr.Error = err.Error()
		return tr
	}

	stages := []func(context.Context, *typeState) error{o.collect}
	if ts.uploads {
		stages = append(stages, o.archiveItems, o.uploadItems)
	}
	stages = append(stages, o.retain)

	for _, stage := range stages {
		if err := stage(ctx, ts); err != nil {
			ts.report.Error = err.Error()
			fields := appErrors.Fields(err)
			fields["type"] = name
			fields["error"] = err.Error()
			logger.WithFields(fields).Error("Backup type aborted")
			break
		}
	}
	return ts.finish()
}

// Status derives the state of every item without changing anything
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		Branch:      o.cfg.Branch,
		GeneratedAt: time.Now(),
	}

	for _, name := range o.cfg.BackupTypes {
		if err := ctx.Err(); err != nil {
			return report, appErrors.WrapError(err, "status interrupted")
		}
		report.Types = append(report.Types, o.typeStatus(ctx, name))
	}
	return report, nil
}

func (o *Orchestrator) typeStatus(ctx context.Context, name string) *TypeStatus {
	status := &TypeStatus{
		Name:    name,
		Uploads: o.cfg.IsUploadType(name),
	}
	if !status.Uploads {
		status.RetentionCount = o.cfg.RetentionCount
	}

	ts, err := o.inspect(ctx, o.logger, name)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	local := ts.localIDs()
	for _, it := range ts.sorted() {
		if !ts.uploads && !it.local && isExpired(local, it.id, o.cfg.RetentionCount) {
			it.expired = true
		}
		status.Items = append(status.Items, ItemStatus{
			ID:       it.id,
			State:    it.state(),
			AtSource: it.source,
			Local:    it.local,
			Archive:  it.archive,
			Remote:   it.remote,
		})
	}
	return status
}
