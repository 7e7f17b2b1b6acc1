package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Remote store providers
const (
	ProviderFTPS  = "ftps"
	ProviderSFTP  = "sftp"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
	ProviderAzure = "azure"
	ProviderLocal = "local"
)

// ValidProviders lists the accepted remote.provider values
var ValidProviders = []string{ProviderFTPS, ProviderSFTP, ProviderS3, ProviderGCS, ProviderAzure, ProviderLocal}

// RemoteConfig defines the remote store archives are uploaded to
type RemoteConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	FTPS  FTPSConfig  `mapstructure:"ftps" yaml:"ftps"`
	SFTP  SFTPConfig  `mapstructure:"sftp" yaml:"sftp"`
	S3    S3Config    `mapstructure:"s3" yaml:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs" yaml:"gcs"`
	Azure AzureConfig `mapstructure:"azure" yaml:"azure"`
	Local LocalConfig `mapstructure:"local" yaml:"local"`
}

// FTPSConfig for an FTP server with explicit TLS
type FTPSConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	Username           string `mapstructure:"username" yaml:"username"`
	Password           string `mapstructure:"password" yaml:"password"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// SFTPConfig for an SSH server. An empty KnownHostsPath disables host key checks.
type SFTPConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password"`
	KeyPath         string `mapstructure:"key_path" yaml:"key_path"`
	KnownHostsPath  string `mapstructure:"known_hosts_path" yaml:"known_hosts_path"`
	TrustOnFirstUse bool   `mapstructure:"trust_on_first_use" yaml:"trust_on_first_use"`
}

// S3Config for Amazon S3 or an S3-compatible endpoint
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// LocalConfig for a mounted filesystem acting as the remote store
type LocalConfig struct {
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// SetDefaults sets default values for the remote configuration
func (rc *RemoteConfig) SetDefaults() {
	if rc.Provider == "" {
		rc.Provider = ProviderFTPS
	}
	rc.Provider = strings.ToLower(rc.Provider)

	if rc.Timeout == 0 {
		rc.Timeout = 60 * time.Second
	}

	rc.FTPS.SetDefaults()
	rc.SFTP.SetDefaults()
	rc.S3.SetDefaults()
	rc.GCS.SetDefaults()
}

func (rc *RemoteConfig) validate(errs *ValidationErrors) {
	if rc.Timeout < 0 {
		errs.Add("remote.timeout", "timeout cannot be negative", rc.Timeout.String())
	}

	switch rc.Provider {
	case ProviderFTPS:
		rc.FTPS.validate(errs)
	case ProviderSFTP:
		rc.SFTP.validate(errs)
	case ProviderS3:
		rc.S3.validate(errs)
	case ProviderGCS:
		rc.GCS.validate(errs)
	case ProviderAzure:
		rc.Azure.validate(errs)
	case ProviderLocal:
		rc.Local.validate(errs)
	default:
		errs.Add("remote.provider", fmt.Sprintf("must be one of: %s", strings.Join(ValidProviders, ", ")), rc.Provider)
	}
}

// SetDefaults sets default values for FTPS configuration
func (fc *FTPSConfig) SetDefaults() {
	if fc.Port == 0 {
		fc.Port = 21
	}
}

func (fc *FTPSConfig) validate(errs *ValidationErrors) {
	if fc.Host == "" {
		errs.Add("remote.ftps.host", "host is required for FTPS", nil)
	}
	if fc.Username == "" {
		errs.Add("remote.ftps.username", "username is required for FTPS", nil)
	}
	if fc.Port < 1 || fc.Port > 65535 {
		errs.Add("remote.ftps.port", "port must be between 1 and 65535", fc.Port)
	}
}

// SetDefaults sets default values for SFTP configuration
func (sc *SFTPConfig) SetDefaults() {
	if sc.Port == 0 {
		sc.Port = 22
	}
}

func (sc *SFTPConfig) validate(errs *ValidationErrors) {
	if sc.Host == "" {
		errs.Add("remote.sftp.host", "host is required for SFTP", nil)
	}
	if sc.Username == "" {
		errs.Add("remote.sftp.username", "username is required for SFTP", nil)
	}
	if sc.Password == "" && sc.KeyPath == "" {
		errs.Add("remote.sftp.password", "password or key_path is required for SFTP", nil)
	}
	if sc.Port < 1 || sc.Port > 65535 {
		errs.Add("remote.sftp.port", "port must be between 1 and 65535", sc.Port)
	}
}

// SetDefaults sets default values for S3 configuration
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

func (s3c *S3Config) validate(errs *ValidationErrors) {
	if s3c.Bucket == "" {
		errs.Add("remote.s3.bucket", "bucket is required for S3 storage", nil)
	}
	if s3c.Region == "" {
		errs.Add("remote.s3.region", "region is required for S3 storage", nil)
	}
	if (s3c.AccessKey == "") != (s3c.SecretKey == "") {
		errs.Add("remote.s3.secret_key", "access_key and secret_key must be set together", nil)
	}
}

// SetDefaults sets default values for GCS configuration
func (gc *GCSConfig) SetDefaults() {
	if gc.CredentialsPath == "" {
		gc.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

func (gc *GCSConfig) validate(errs *ValidationErrors) {
	if gc.Bucket == "" {
		errs.Add("remote.gcs.bucket", "bucket is required for GCS storage", nil)
	}
}

func (ac *AzureConfig) validate(errs *ValidationErrors) {
	if ac.AccountName == "" {
		errs.Add("remote.azure.account_name", "account name is required for Azure storage", nil)
	}
	if ac.AccountKey == "" {
		errs.Add("remote.azure.account_key", "account key is required for Azure storage", nil)
	}
	if ac.ContainerName == "" {
		errs.Add("remote.azure.container_name", "container name is required for Azure storage", nil)
	}
}

func (lc *LocalConfig) validate(errs *ValidationErrors) {
	if lc.BasePath == "" {
		errs.Add("remote.local.base_path", "base path is required for local storage", nil)
	}
}
