package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"backup-rotator/internal/logging"
)

// Archive formats
const (
	FormatZip    = "zip"
	FormatTarGz  = "tar.gz"
	FormatTarZst = "tar.zst"
	FormatTarLz4 = "tar.lz4"
)

// Archive compression levels
const (
	LevelFastest = "fastest"
	LevelDefault = "default"
	LevelBest    = "best"
)

var (
	validFormats = []string{FormatZip, FormatTarGz, FormatTarZst, FormatTarLz4}
	validLevels  = []string{LevelFastest, LevelDefault, LevelBest}
)

// Config is the validated settings object a rotation run is built from
type Config struct {
	SourcePath     string   `mapstructure:"source_path" yaml:"source_path"`
	LocalPath      string   `mapstructure:"local_path" yaml:"local_path"`
	Branch         string   `mapstructure:"branch" yaml:"branch"`
	BackupTypes    []string `mapstructure:"backup_types" yaml:"backup_types"`
	UploadTypes    []string `mapstructure:"upload_types" yaml:"upload_types"`
	RetentionCount int      `mapstructure:"retention_count" yaml:"retention_count"`
	KeepUploaded   int      `mapstructure:"keep_uploaded" yaml:"keep_uploaded"`
	RemoveSource   bool     `mapstructure:"remove_source" yaml:"remove_source"`
	DryRun         bool     `mapstructure:"dry_run" yaml:"dry_run"`
	Lock           bool     `mapstructure:"lock" yaml:"lock"`

	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ArchiveConfig defines how upload items are compressed
type ArchiveConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Level  string `mapstructure:"level" yaml:"level"`
}

// LoggingConfig defines log output settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a configuration with every optional field at its default.
// Required fields (paths, branch, types, remote credentials) are left empty.
func Default() *Config {
	c := &Config{
		RemoveSource: true,
		Lock:         true,
	}
	c.SetDefaults()
	return c
}

// IsUploadType reports whether backupType is archived and uploaded
func (c *Config) IsUploadType(backupType string) bool {
	return containsString(c.UploadTypes, backupType)
}

// HasRetainedTypes reports whether any backup type is kept by count only
func (c *Config) HasRetainedTypes() bool {
	for _, t := range c.BackupTypes {
		if !c.IsUploadType(t) {
			return true
		}
	}
	return false
}

// LoggerConfig converts the logging section for logging.NewLogger
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      logging.LogLevel(c.Logging.Level),
		Format:     c.Logging.Format,
		LogFile:    c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}

// SetDefaults fills optional fields left empty. RetentionCount has no
// default; it must be set whenever a type is kept by count.
func (c *Config) SetDefaults() {
	c.Archive.SetDefaults()
	c.Remote.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks the whole configuration and reports every problem found
func (c *Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.SourcePath) == "" {
		errs.Add("source_path", "source path is required", c.SourcePath)
	}
	if strings.TrimSpace(c.LocalPath) == "" {
		errs.Add("local_path", "local path is required", c.LocalPath)
	}
	if c.SourcePath != "" && c.LocalPath != "" {
		if overlaps, err := pathsOverlap(c.SourcePath, c.LocalPath); err != nil {
			errs.Add("local_path", err.Error(), c.LocalPath)
		} else if overlaps {
			errs.Add("local_path", "local path must not be the source path or nested with it", c.LocalPath)
		}
	}

	if strings.TrimSpace(c.Branch) == "" {
		errs.Add("branch", "branch is required", c.Branch)
	} else if !isPathSegment(c.Branch) {
		errs.Add("branch", "branch must be a single path segment", c.Branch)
	}

	if len(c.BackupTypes) == 0 {
		errs.Add("backup_types", "at least one backup type is required", nil)
	}
	seen := make(map[string]bool)
	for _, t := range c.BackupTypes {
		if !isPathSegment(t) || strings.HasPrefix(t, ".") {
			errs.Add("backup_types", "backup type must be a single non-hidden path segment", t)
		}
		if seen[t] {
			errs.Add("backup_types", "duplicate backup type", t)
		}
		seen[t] = true
	}
	for _, t := range c.UploadTypes {
		if !seen[t] {
			errs.Add("upload_types", "upload type is not listed in backup_types", t)
		}
	}

	if c.HasRetainedTypes() && c.RetentionCount < 1 {
		errs.Add("retention_count", "retention count must be at least 1", c.RetentionCount)
	}
	if c.KeepUploaded < 0 {
		errs.Add("keep_uploaded", "keep uploaded cannot be negative", c.KeepUploaded)
	}

	c.Archive.validate(&errs)
	c.Logging.validate(&errs)
	if len(c.UploadTypes) > 0 {
		c.Remote.validate(&errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// SetDefaults sets default values for archive configuration
func (ac *ArchiveConfig) SetDefaults() {
	if ac.Format == "" {
		ac.Format = FormatZip
	}
	if ac.Level == "" {
		ac.Level = LevelDefault
	}
}

func (ac *ArchiveConfig) validate(errs *ValidationErrors) {
	if !containsString(validFormats, ac.Format) {
		errs.Add("archive.format", fmt.Sprintf("must be one of: %s", strings.Join(validFormats, ", ")), ac.Format)
	}
	if !containsString(validLevels, ac.Level) {
		errs.Add("archive.level", fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")), ac.Level)
	}
}

// SetDefaults sets default values for logging configuration
func (lc *LoggingConfig) SetDefaults() {
	if lc.Level == "" {
		lc.Level = string(logging.LogLevelNormal)
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
	if lc.MaxSizeMB == 0 {
		lc.MaxSizeMB = 10
	}
	if lc.MaxBackups == 0 {
		lc.MaxBackups = 5
	}
}

func (lc *LoggingConfig) validate(errs *ValidationErrors) {
	if !logging.IsValidLevel(lc.Level) {
		errs.Add("logging.level", "must be one of: quiet, normal, verbose, debug", lc.Level)
	}
	if lc.Format != "text" && lc.Format != "json" {
		errs.Add("logging.format", "must be one of: text, json", lc.Format)
	}
	if lc.MaxSizeMB < 0 {
		errs.Add("logging.max_size_mb", "cannot be negative", lc.MaxSizeMB)
	}
	if lc.MaxBackups < 0 {
		errs.Add("logging.max_backups", "cannot be negative", lc.MaxBackups)
	}
}

func pathsOverlap(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("cannot resolve %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("cannot resolve %s: %w", b, err)
	}
	return isWithin(absA, absB) || isWithin(absB, absA), nil
}

// isWithin reports whether child is parent or below it
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isPathSegment(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
