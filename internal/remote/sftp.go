package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
)

// SFTPProvider uploads over SSH. The session is opened on first use.
type SFTPProvider struct {
	cfg     config.SFTPConfig
	timeout time.Duration
	logger  *logging.Logger

	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewSFTPProvider creates an SFTP provider; it does not connect yet
func NewSFTPProvider(cfg config.SFTPConfig, timeout time.Duration, logger *logging.Logger) *SFTPProvider {
	return &SFTPProvider{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
	}
}

func (sp *SFTPProvider) authMethods() ([]ssh.AuthMethod, error) {
	if sp.cfg.KeyPath != "" {
		keyData, err := os.ReadFile(sp.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if sp.cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(sp.cfg.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if sp.cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(sp.cfg.Password)}, nil
	}
	return nil, errors.New("no authentication method provided for SFTP")
}

func (sp *SFTPProvider) connect(ctx context.Context) (*sftp.Client, error) {
	if sp.sftpClient != nil {
		return sp.sftpClient, nil
	}

	auth, err := sp.authMethods()
	if err != nil {
		return nil, appErrors.NewConfigurationError("invalid SFTP credentials", err)
	}

	hostKeyCallback, err := newHostKeyCallback(sp.cfg.KnownHostsPath, sp.cfg.TrustOnFirstUse, sp.logger)
	if err != nil {
		return nil, appErrors.NewConfigurationError("failed to configure host key verification", err)
	}

	addr := net.JoinHostPort(sp.cfg.Host, strconv.Itoa(sp.cfg.Port))
	sp.logger.WithField("addr", addr).Debug("Connecting to SFTP server")

	dialer := &net.Dialer{Timeout: sp.timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, appErrors.WrapError(err, fmt.Sprintf("failed to connect to SSH server %s", addr))
	}

	sshConfig := &ssh.ClientConfig{
		User:            sp.cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         sp.timeout,
	}
	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshConfig)
	if err != nil {
		netConn.Close()
		return nil, appErrors.NewNetworkError("SSH handshake failed", err)
	}
	sshClient := ssh.NewClient(conn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacketUnchecked(131072),
		sftp.UseConcurrentWrites(true),
	)
	if err != nil {
		sshClient.Close()
		return nil, appErrors.NewNetworkError("failed to create SFTP client", err)
	}

	sp.sshClient = sshClient
	sp.sftpClient = sftpClient
	return sftpClient, nil
}

// Upload writes localPath to key.part and renames it to key
func (sp *SFTPProvider) Upload(ctx context.Context, localPath, key string) (retErr error) {
	client, err := sp.connect(ctx)
	if err != nil {
		return err
	}

	if dir, _ := splitKey(key); dir != "" {
		if err := client.MkdirAll(dir); err != nil {
			sp.Close()
			return appErrors.NewNetworkError(fmt.Sprintf("failed to create remote directory %s", dir), err)
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer src.Close()

	part := key + PartSuffix
	dst, err := client.Create(part)
	if err != nil {
		sp.Close()
		return appErrors.NewNetworkError("failed to create remote file", err)
	}
	defer func() {
		if retErr != nil {
			dst.Close()
			client.Remove(part)
		}
	}()

	if _, err := io.Copy(dst, &contextReader{ctx: ctx, r: src}); err != nil {
		return appErrors.WrapError(err, "failed to write remote file")
	}
	if err := dst.Close(); err != nil {
		return appErrors.NewNetworkError("failed to close remote file", err)
	}

	// Plain SFTP rename fails when the target exists
	if _, err := client.Stat(key); err == nil {
		if err := client.Remove(key); err != nil {
			return appErrors.NewNetworkError("failed to replace remote file", err)
		}
	}
	if err := client.Rename(part, key); err != nil {
		return appErrors.NewNetworkError("failed to finalize remote file", err)
	}
	return nil
}

// Exists reports whether a regular file is stored at key
func (sp *SFTPProvider) Exists(ctx context.Context, key string) (bool, error) {
	client, err := sp.connect(ctx)
	if err != nil {
		return false, err
	}

	info, err := client.Stat(key)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	sp.Close()
	return false, appErrors.NewNetworkError("failed to stat remote file", err)
}

// Close closes the SFTP and SSH connections
func (sp *SFTPProvider) Close() error {
	var err error
	if sp.sftpClient != nil {
		err = sp.sftpClient.Close()
		sp.sftpClient = nil
	}
	if sp.sshClient != nil {
		if cerr := sp.sshClient.Close(); err == nil {
			err = cerr
		}
		sp.sshClient = nil
	}
	return err
}
