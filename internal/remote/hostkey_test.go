package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"backup-rotator/internal/logging"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestHostKeyCallback_NoKnownHosts(t *testing.T) {
	cb, err := newHostKeyCallback("", false, logging.NewNopLogger())
	require.NoError(t, err)

	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
	assert.NoError(t, cb("sftp.example.com:22", addr, newHostKey(t)))
}

func TestHostKeyCallback_TrustOnFirstUse(t *testing.T) {
	knownHosts := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	logger := logging.NewNopLogger()
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
	key := newHostKey(t)

	cb, err := newHostKeyCallback(knownHosts, true, logger)
	require.NoError(t, err)
	require.NoError(t, cb("sftp.example.com:22", addr, key))

	data, err := os.ReadFile(knownHosts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "sftp.example.com "))

	// The recorded key is accepted without TOFU
	cb, err = newHostKeyCallback(knownHosts, false, logger)
	require.NoError(t, err)
	assert.NoError(t, cb("sftp.example.com:22", addr, key))

	// A different key for the same host is rejected even with TOFU
	cb, err = newHostKeyCallback(knownHosts, true, logger)
	require.NoError(t, err)
	err = cb("sftp.example.com:22", addr, newHostKey(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed")
}

func TestHostKeyCallback_UnknownHostRejected(t *testing.T) {
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")

	cb, err := newHostKeyCallback(knownHosts, false, logging.NewNopLogger())
	require.NoError(t, err)

	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
	err = cb("sftp.example.com:22", addr, newHostKey(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")

	data, err := os.ReadFile(knownHosts)
	require.NoError(t, err)
	assert.Empty(t, data)
}
