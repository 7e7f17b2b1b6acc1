package cmd

import (
	"github.com/spf13/cobra"

	"backup-rotator/internal/config"
)

func createStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every backup item",
		Long: `Inspect the source folder, local storage and the remote store and print the
state of every item per backup type. Nothing is changed.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Inspection never creates the local root
	cfg.DryRun = true

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	if _, err := config.CheckStartup(cfg); err != nil {
		return err
	}

	orch, closeProvider, err := newOrchestrator(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	report, err := orch.Status(cmd.Context())
	if err != nil {
		return err
	}
	return newRenderer(cmd).RenderStatus(report)
}
