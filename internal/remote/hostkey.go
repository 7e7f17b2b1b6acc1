package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"backup-rotator/internal/logging"
)

// newHostKeyCallback verifies server keys against a known_hosts file. An
// empty path disables verification. With trustOnFirstUse, unknown hosts are
// appended to the file; a changed key is always rejected.
func newHostKeyCallback(knownHostsPath string, trustOnFirstUse bool, logger *logging.Logger) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(knownHostsPath) == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if err := ensureKnownHostsFile(knownHostsPath); err != nil {
		return nil, err
	}

	base, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := base(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}

		fingerprint := ssh.FingerprintSHA256(key)
		if len(keyErr.Want) > 0 {
			logger.WithFields(map[string]interface{}{
				"host":        hostname,
				"fingerprint": fingerprint,
			}).Warn("SSH host key changed")
			return fmt.Errorf("SSH host key changed for %s", hostname)
		}

		if !trustOnFirstUse {
			return fmt.Errorf("unknown SSH host key for %s", hostname)
		}

		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		if err := appendLine(knownHostsPath, line); err != nil {
			return err
		}

		logger.WithFields(map[string]interface{}{
			"host":        hostname,
			"fingerprint": fingerprint,
		}).Info("SSH host key accepted")
		return nil
	}, nil
}

func ensureKnownHostsFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create known_hosts file: %w", err)
	}
	return f.Close()
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write known_hosts entry: %w", err)
	}
	return nil
}
