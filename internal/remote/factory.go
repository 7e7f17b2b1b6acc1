package remote

import (
	"context"
	"fmt"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
)

// New creates the provider selected by cfg.Provider. Network providers
// connect lazily on first use, so construction only fails on settings the
// client library itself rejects.
func New(ctx context.Context, cfg config.RemoteConfig, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var (
		provider Provider
		err      error
	)

	switch cfg.Provider {
	case config.ProviderFTPS:
		provider = NewFTPSProvider(cfg.FTPS, cfg.Timeout, logger)
	case config.ProviderSFTP:
		provider = NewSFTPProvider(cfg.SFTP, cfg.Timeout, logger)
	case config.ProviderS3:
		provider, err = NewS3Provider(cfg.S3, cfg.Timeout)
	case config.ProviderGCS:
		provider, err = NewGCSProvider(ctx, cfg.GCS, cfg.Timeout)
	case config.ProviderAzure:
		provider, err = NewAzureProvider(cfg.Azure, cfg.Timeout)
	case config.ProviderLocal:
		provider, err = NewLocalProvider(cfg.Local)
	default:
		return nil, appErrors.NewConfigurationError(fmt.Sprintf("unsupported remote provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, appErrors.NewConfigurationError(fmt.Sprintf("failed to create %s provider", cfg.Provider), err)
	}

	logger.WithField("provider", cfg.Provider).Debug("Remote provider created")
	return provider, nil
}

// SupportedProviders returns the provider names New accepts
func SupportedProviders() []string {
	out := make([]string, len(config.ValidProviders))
	copy(out, config.ValidProviders)
	return out
}
