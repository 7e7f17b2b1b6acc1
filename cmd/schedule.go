package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
)

var cronSpec string

func createScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run rotation passes on a cron schedule",
		Long: `Stay in the foreground and run a rotation pass on every tick of a cron
schedule. Standard five-field expressions, an optional leading seconds field
and descriptors such as @hourly are accepted.

A tick is skipped while the previous pass is still running. SIGINT or SIGTERM
stops the scheduler once the current pass has finished.`,
		Example: `  backup-rotator schedule --cron "0 * * * *"
  backup-rotator schedule --cron @daily --config=/etc/backup-rotator.yaml`,
		RunE: runSchedule,
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "", "cron expression (required)")
	cmd.MarkFlagRequired("cron")
	return cmd
}

func newCronParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	parser := newCronParser()
	if _, err := parser.Parse(cronSpec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronSpec, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	// Passes run on the command context so a signal lets the current one finish
	runCtx := cmd.Context()
	id, err := c.AddFunc(cronSpec, func() {
		report, err := runOnce(runCtx, cfg, logger)
		if err != nil {
			fields := appErrors.Fields(err)
			fields["error"] = err.Error()
			logger.WithFields(fields).Error("Scheduled rotation failed")
			return
		}
		entry := logger.WithFields(map[string]interface{}{
			"run_id":   report.RunID,
			"failures": report.Failures(),
		})
		if report.HasFailures() {
			entry.Warn("Scheduled rotation finished with failures")
			return
		}
		entry.Info("Scheduled rotation finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rotation: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Start()
	logger.WithFields(map[string]interface{}{
		"cron":     cronSpec,
		"next_run": c.Entry(id).Next,
	}).Info("Scheduler started")

	<-sigCtx.Done()
	logger.Info("Stopping scheduler, waiting for the current pass")
	<-c.Stop().Done()
	logger.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts the rotation logger to cron.Logger
type cronLogger struct {
	logger *logging.Logger
}

// Info receives cron's per-tick chatter, shown only at verbose level
func (cl cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !cl.logger.IsLevelEnabled(logging.LogLevelVerbose) {
		return
	}
	cl.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (cl cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	cl.logger.WithFields(fields).Error(msg)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
