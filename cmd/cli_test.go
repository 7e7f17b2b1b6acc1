package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/rotation"
)

type cliEnv struct {
	root       string
	source     string
	local      string
	remote     string
	configPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		root:       root,
		source:     filepath.Join(root, "source"),
		local:      filepath.Join(root, "local"),
		remote:     filepath.Join(root, "remote"),
		configPath: filepath.Join(root, "backup-rotator.yaml"),
	}
	require.NoError(t, os.MkdirAll(env.source, 0755))

	cfg := fmt.Sprintf(`source_path: %s
local_path: %s
branch: office-1
backup_types: [daily, hourly]
upload_types: [daily]
retention_count: 2
remote:
  provider: local
  local:
    base_path: %s
`, env.source, env.local, env.remote)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0644))
	return env
}

func (env *cliEnv) addItem(t *testing.T, backupType, id string) {
	t.Helper()
	dir := filepath.Join(env.source, backupType, id, "Databases")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Contacts.fmp12"), []byte("contacts "+id), 0644))
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range list {
		if e.Name()[0] != '.' {
			out = append(out, e.Name())
		}
	}
	return out
}

// resetFlags restores every flag to its default between invocations
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	code := execute(&stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.addItem(t, "daily", "2024-03-01_0100")
	env.addItem(t, "daily", "2024-03-02_0100")
	env.addItem(t, "hourly", "2024-03-02_0900")
	env.addItem(t, "hourly", "2024-03-02_1000")
	env.addItem(t, "hourly", "2024-03-02_1100")

	code, stdout, stderr := runCLI(t, "run", "--config", env.configPath, "--output", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report rotation.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "office-1", report.Branch)
	assert.False(t, report.HasFailures())
	require.Len(t, report.Types, 2)

	assert.ElementsMatch(t, []string{"2024-03-01_0100.zip", "2024-03-02_0100.zip"},
		names(t, filepath.Join(env.remote, "office-1", "daily")))
	assert.Empty(t, names(t, filepath.Join(env.local, "daily")))
	assert.Equal(t, []string{"2024-03-02_1000", "2024-03-02_1100"}, names(t, filepath.Join(env.local, "hourly")))

	// remove_source defaults to true
	assert.Empty(t, names(t, filepath.Join(env.source, "daily")))
	assert.Empty(t, names(t, filepath.Join(env.source, "hourly")))
}

func TestRootCommandRunsRotation(t *testing.T) {
	env := newCLIEnv(t)
	env.addItem(t, "hourly", "2024-03-02_0900")

	code, stdout, stderr := runCLI(t, "--config", env.configPath, "--no-color")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "hourly")
	assert.Contains(t, stdout, "0 failure(s)")
	assert.Equal(t, []string{"2024-03-02_0900"}, names(t, filepath.Join(env.local, "hourly")))
}

func TestRunCommandDryRun(t *testing.T) {
	env := newCLIEnv(t)
	env.addItem(t, "daily", "2024-03-01_0100")
	env.addItem(t, "hourly", "2024-03-02_0900")

	code, stdout, stderr := runCLI(t, "run", "--config", env.configPath, "--dry-run", "--output", "yaml")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "dry_run: true")

	_, err := os.Stat(env.local)
	assert.True(t, os.IsNotExist(err), "local root must not be created")
	assert.Equal(t, []string{"2024-03-01_0100"}, names(t, filepath.Join(env.source, "daily")))
	assert.Equal(t, []string{"2024-03-02_0900"}, names(t, filepath.Join(env.source, "hourly")))
	assert.NoDirExists(t, env.remote, "dry run must not create the remote base")
}

func TestRunCommandStrict(t *testing.T) {
	env := newCLIEnv(t)
	env.addItem(t, "daily", "2024-03-01_0100")

	// A file where the type folder belongs makes every upload fail
	require.NoError(t, os.MkdirAll(filepath.Join(env.remote, "office-1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.remote, "office-1", "daily"), nil, 0644))

	code, _, stderr := runCLI(t, "run", "--config", env.configPath, "--quiet")
	assert.Equal(t, ExitOK, code, stderr)

	code, stdout, stderr := runCLI(t, "run", "--config", env.configPath, "--strict", "--output", "json")
	assert.Equal(t, ExitFailures, code)
	assert.Contains(t, stderr, "1 item failure(s)")

	var report rotation.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	ir := report.Type("daily").Item("2024-03-01_0100")
	require.NotNil(t, ir)
	assert.Equal(t, rotation.StageUpload, ir.FailedStage)

	// Copy and archive stay for the next attempt
	assert.ElementsMatch(t, []string{"2024-03-01_0100", "2024-03-01_0100.zip"},
		names(t, filepath.Join(env.local, "daily")))
}

func TestRunCommandFatalErrors(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		env := newCLIEnv(t)
		require.NoError(t, os.WriteFile(env.configPath, []byte("source_path: "+env.source+"\n"), 0644))

		code, _, stderr := runCLI(t, "run", "--config", env.configPath)
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, "local_path")
		assert.Contains(t, stderr, "branch")
	})

	t.Run("missing source root", func(t *testing.T) {
		env := newCLIEnv(t)
		require.NoError(t, os.RemoveAll(env.source))

		code, _, stderr := runCLI(t, "run", "--config", env.configPath)
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, "source path")
	})

	t.Run("missing config file", func(t *testing.T) {
		env := newCLIEnv(t)
		code, _, _ := runCLI(t, "run", "--config", filepath.Join(env.root, "nope.yaml"))
		assert.Equal(t, ExitFatal, code)
	})

	t.Run("verbose and quiet", func(t *testing.T) {
		env := newCLIEnv(t)
		code, _, stderr := runCLI(t, "run", "--config", env.configPath, "-v", "-q")
		assert.Equal(t, ExitFatal, code)
		assert.Contains(t, stderr, "mutually exclusive")
	})

	t.Run("unknown output format", func(t *testing.T) {
		env := newCLIEnv(t)
		code, _, _ := runCLI(t, "run", "--config", env.configPath, "--output", "xml")
		assert.Equal(t, ExitFatal, code)
	})
}

func TestStatusCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.addItem(t, "hourly", "2024-03-02_0900")

	code, stdout, stderr := runCLI(t, "status", "--config", env.configPath, "--output", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report rotation.StatusReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	hourly := report.Type("hourly")
	require.NotNil(t, hourly)
	assert.Equal(t, 1, hourly.Count(rotation.StatePendingSource))

	_, err := os.Stat(env.local)
	assert.True(t, os.IsNotExist(err), "status must not create the local root")
	assert.NoDirExists(t, env.remote, "status must not create the remote base")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", fmt.Errorf("boom"), ExitFatal},
		{"configuration", appErrors.NewConfigurationError("invalid configuration", nil), ExitFatal},
		{"lock held", appErrors.NewLockError("another run holds the lock", nil), ExitFatal},
		{"interrupted", appErrors.WrapError(fmt.Errorf("listing: %w", context.Canceled), "run aborted"), ExitInterrupted},
		{"strict failures", &exitError{code: ExitFailures, err: fmt.Errorf("1 item failure(s)")}, ExitFailures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestConfigCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "config")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, config.SampleYAML, stdout)
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "backup-rotator version dev")
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	env := newCLIEnv(t)
	code, _, stderr := runCLI(t, "schedule", "--config", env.configPath, "--cron", "not a cron")
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, stderr, "invalid cron expression")
}

func TestCronParser(t *testing.T) {
	parser := newCronParser()
	for _, spec := range []string{"0 * * * *", "30 0 * * * *", "@hourly", "@every 15m"} {
		_, err := parser.Parse(spec)
		assert.NoError(t, err, spec)
	}
	_, err := parser.Parse("61 * * * *")
	assert.Error(t, err)
}
