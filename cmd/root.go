package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"backup-rotator/internal/config"
	"backup-rotator/internal/display"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
)

// Exit codes
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitFailures    = 2
	ExitInterrupted = 130
)

var cfgFile string

// Global flag variables
var (
	verbose      bool
	quiet        bool
	dryRun       bool
	logFile      string
	logFormat    string
	outputFormat string
	noColor      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backup-rotator",
	Short: "Rotate database server backups into local storage and a remote store",
	Long: `backup-rotator moves timestamped backup folders produced by a database
server into local storage. Items of upload types are archived, uploaded to a
remote store (FTPS, SFTP, S3, GCS, Azure Blob or a local path) and pruned
locally once the upload is confirmed. Other types keep the most recent
retention_count copies.

Every run re-derives what is already done from the filesystem and the remote
store, so an interrupted run is completed by the next one.

Examples:
  # One rotation pass with the config in ./backup-rotator.yaml
  backup-rotator

  # Show what a run would do without touching anything
  backup-rotator run --dry-run --config=/etc/backup-rotator.yaml

  # Inspect the current state as JSON
  backup-rotator status --output=json

  # Run every hour as a daemon
  backup-rotator schedule --cron "0 * * * *"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRotation,
}

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(execute(os.Stderr))
}

func execute(stderr io.Writer) int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch appErrors.GetErrorType(err) {
	case appErrors.ErrorTypeInterruption:
		return ExitInterrupted
	default:
		// Configuration, lock and startup errors
		return ExitFatal
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./backup-rotator.yaml, then $HOME/.backup-rotator.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every item and stage")
	flags.BoolVarP(&quiet, "quiet", "q", false, "log errors only")
	flags.BoolVar(&dryRun, "dry-run", false, "show what would happen without changing anything")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file (rotated by size)")
	flags.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	flags.StringVarP(&outputFormat, "output", "o", "text", "report format (text, json, yaml)")
	flags.BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(createRunCommand())
	rootCmd.AddCommand(createStatusCommand())
	rootCmd.AddCommand(createScheduleCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createVersionCommand())
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	if _, err := display.ParseOutputFormat(outputFormat); err != nil {
		return err
	}
	return nil
}

// loadConfig merges defaults, the config file, BACKUP_ROTATOR_* variables
// and flags into a validated Config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := validateFlags(); err != nil {
		return nil, appErrors.NewConfigurationError("invalid flags", err)
	}

	v, err := config.NewViper()
	if err != nil {
		return nil, err
	}

	path, err := config.ResolveFile(cfgFile)
	if err != nil {
		return nil, appErrors.NewConfigurationError("config file not usable", err)
	}
	if err := config.ReadFile(v, path); err != nil {
		return nil, appErrors.NewConfigurationError("config file not readable", err).WithContext("path", path)
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, appErrors.NewConfigurationError("invalid configuration", err)
	}
	return cfg, nil
}

// bindFlags applies changed flags on top of file and environment values
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.Flags()
	bindings := map[string]string{
		"dry_run":        "dry-run",
		"logging.file":   "log-file",
		"logging.format": "log-format",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}

	return nil
}

// newLogger writes logs to stderr so reports on stdout stay parseable
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()

	logger, err := logging.NewLogger(lc)
	if err != nil {
		return nil, appErrors.NewConfigurationError("failed to initialize logger", err)
	}

	// -v and -q win over logging.level
	switch {
	case verbose:
		logger.SetLevel(logging.LogLevelVerbose)
	case quiet:
		logger.SetLevel(logging.LogLevelQuiet)
	}
	return logger, nil
}

func newRenderer(cmd *cobra.Command) *display.Renderer {
	format, _ := display.ParseOutputFormat(outputFormat)
	w := cmd.OutOrStdout()

	enabled := !noColor
	if f, ok := w.(*os.File); ok {
		enabled = enabled && display.DetectColorSupport(f)
	} else {
		enabled = false
	}

	return display.NewRenderer(format, w, display.NewColorSystem(display.DarkColorTheme(), enabled))
}
