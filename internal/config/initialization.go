package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StartupResult is the outcome of the checks run before any stage
type StartupResult struct {
	SourceReady bool
	LocalReady  bool
	Warnings    []string
}

// CheckStartup verifies the filesystem roots a run depends on. The source
// root must be a readable directory; the local root is created when missing
// and must be writable. Credential gaps that a provider may fill from its
// own environment are reported as warnings. Dry runs never create or write.
func CheckStartup(cfg *Config) (*StartupResult, error) {
	result := &StartupResult{}

	if err := checkSourceRoot(cfg.SourcePath); err != nil {
		return result, err
	}
	result.SourceReady = true

	if err := checkLocalRoot(cfg.LocalPath, cfg.DryRun); err != nil {
		return result, err
	}
	result.LocalReady = true

	if len(cfg.UploadTypes) > 0 {
		result.Warnings = append(result.Warnings, credentialWarnings(&cfg.Remote)...)
	}

	return result, nil
}

func checkSourceRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access source path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", path)
	}

	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("source path is not readable: %w", err)
	}
	defer dir.Close()

	if _, err := dir.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("source path is not readable: %w", err)
	}
	return nil
}

func checkLocalRoot(path string, dryRun bool) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("local path is not a directory: %s", path)
	case err == nil:
	case os.IsNotExist(err) && dryRun:
		return nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create local path: %w", err)
		}
	default:
		return fmt.Errorf("cannot access local path: %w", err)
	}

	if dryRun {
		return nil
	}

	probe, err := os.CreateTemp(path, ".permission_test-*")
	if err != nil {
		return fmt.Errorf("insufficient write permissions for local path: %w", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func credentialWarnings(rc *RemoteConfig) []string {
	var warnings []string

	switch rc.Provider {
	case ProviderS3:
		if rc.S3.AccessKey == "" && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
			warnings = append(warnings, "S3 credentials not configured; relying on the default AWS credential chain")
		}
	case ProviderGCS:
		if rc.GCS.CredentialsPath == "" {
			warnings = append(warnings, "GCS credentials not configured; relying on application default credentials")
		} else if _, err := os.Stat(rc.GCS.CredentialsPath); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("GCS credentials file does not exist: %s", rc.GCS.CredentialsPath))
		}
	case ProviderSFTP:
		if rc.SFTP.KnownHostsPath == "" {
			warnings = append(warnings, "SFTP host key verification disabled: known_hosts_path is empty")
		}
		if rc.SFTP.KeyPath != "" {
			if _, err := os.Stat(filepath.Clean(rc.SFTP.KeyPath)); err != nil {
				warnings = append(warnings, fmt.Sprintf("SFTP key file is not accessible: %s", rc.SFTP.KeyPath))
			}
		}
	case ProviderFTPS:
		if rc.FTPS.InsecureSkipVerify {
			warnings = append(warnings, "FTPS certificate verification disabled")
		}
	}

	return warnings
}
