package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backup-rotator/internal/config"
	"backup-rotator/internal/display"
	"backup-rotator/internal/logging"
	"backup-rotator/internal/remote"
	"backup-rotator/internal/rotation"
)

var strict bool

func createRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one rotation pass",
		Long: `Run one rotation pass over every configured backup type.

Per-item failures are logged, shown in the report and retried by the next run;
they do not change the exit status unless --strict is given.`,
		RunE: runRotation,
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 2 when any item failed")
	return cmd
}

func runRotation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runOnce(ctx, cfg, logger)
	if report != nil {
		// Quiet text output only shows runs that need attention
		format, _ := display.ParseOutputFormat(outputFormat)
		if !quiet || report.HasFailures() || format != display.FormatText {
			if rerr := newRenderer(cmd).RenderRun(report); rerr != nil {
				return rerr
			}
		}
	}
	if err != nil {
		return err
	}

	if strict && report.HasFailures() {
		return &exitError{
			code: ExitFailures,
			err:  fmt.Errorf("%d item failure(s)", report.Failures()),
		}
	}
	return nil
}

// runOnce checks the filesystem roots, connects the remote store when a
// type uploads and performs one rotation pass
func runOnce(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*rotation.RunReport, error) {
	startup, err := config.CheckStartup(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range startup.Warnings {
		logger.Warn(w)
	}

	orch, closeProvider, err := newOrchestrator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeProvider()

	return orch.Run(ctx)
}

func newOrchestrator(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*rotation.Orchestrator, func(), error) {
	var provider remote.Provider
	closeProvider := func() {}

	if len(cfg.UploadTypes) > 0 {
		p, err := remote.New(ctx, cfg.Remote, logger)
		if err != nil {
			return nil, nil, err
		}
		provider = p
		closeProvider = func() {
			if err := p.Close(); err != nil {
				logger.WithField("error", err.Error()).Warn("Failed to close remote connection")
			}
		}
	}

	orch, err := rotation.New(cfg, provider, logger)
	if err != nil {
		closeProvider()
		return nil, nil, err
	}
	return orch, closeProvider, nil
}
